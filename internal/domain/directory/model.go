package directory

import "time"

const (
	RoleResident   = "resident"
	RoleHead       = "head"
	RoleSuperadmin = "superadmin"
)

type Organization struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type Apartment struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	OSBBID    string    `gorm:"column:osbb_id;type:uuid;index;not null"`
	Number    string    `gorm:"not null"`
	Area      float64   `gorm:"type:numeric(10,2);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type User struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	Email       string    `gorm:"uniqueIndex;not null"`
	Role        string    `gorm:"type:varchar(16);not null"`
	ApartmentID *string   `gorm:"type:uuid;index"`
	OSBBID      *string   `gorm:"column:osbb_id;type:uuid;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// CanManageVotings reports whether the user may create votings and drive
// lifecycle transitions.
func (u *User) CanManageVotings() bool {
	return u.Role == RoleHead || u.Role == RoleSuperadmin
}
