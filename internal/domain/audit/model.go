package audit

import "time"

// Entry is an append-only record of an administrative action. Entries are
// never updated or deleted.
type Entry struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	VotingID  *string   `gorm:"type:uuid;index"`
	ActorID   string    `gorm:"not null"`
	Action    string    `gorm:"type:varchar(32);not null"`
	Detail    string
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Entry) TableName() string { return "audit_entries" }
