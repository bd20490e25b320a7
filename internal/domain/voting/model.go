package voting

import "time"

const (
	TypeSimple = "simple"
	TypeLegal  = "legal"
)

const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

const (
	ChoiceFor     = "for"
	ChoiceAgainst = "against"
	ChoiceAbstain = "abstain"
)

const (
	OutcomePassed   = "passed"
	OutcomeRejected = "rejected"
)

const (
	ReasonQuorumNotMet       = "quorum_not_met"
	ReasonMajorityNotReached = "majority_not_reached"
)

type Voting struct {
	ID          string  `gorm:"type:uuid;primaryKey"`
	OSBBID      *string `gorm:"column:osbb_id;type:uuid;index"`
	Title       string  `gorm:"not null"`
	Description string
	Type        string `gorm:"type:varchar(16);not null"`
	Status      string `gorm:"type:varchar(16);not null"`
	// QuorumThreshold is captured at creation; later config changes must not
	// alter the rules of an in-flight voting.
	QuorumThreshold float64   `gorm:"type:numeric(4,3);not null"`
	StartTime       time.Time `gorm:"not null"`
	EndTime         time.Time `gorm:"not null"`
	// Result holds the tally snapshot written exactly once at close, stored
	// raw so repeated reads return identical bytes.
	Result    []byte    `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Vote is immutable once stored. Weight is frozen at cast time; later
// apartment-area edits never change it.
type Vote struct {
	ID       string    `gorm:"type:uuid;primaryKey"`
	VotingID string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_voting_user,priority:1"`
	UserID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_voting_user,priority:2"`
	Choice   string    `gorm:"type:varchar(8);not null"`
	Weight   float64   `gorm:"type:numeric(12,6);not null"`
	CastAt   time.Time `gorm:"not null"`
}

type Result struct {
	For           float64   `json:"for"`
	Against       float64   `json:"against"`
	Abstain       float64   `json:"abstain"`
	Participating float64   `json:"participating"`
	QuorumMet     bool      `json:"quorum_met"`
	Outcome       string    `json:"outcome"`
	Reason        string    `json:"reason,omitempty"`
	TalliedAt     time.Time `json:"tallied_at"`
}

type CreateVotingInput struct {
	OSBBID      *string
	Title       string
	Description string
	Type        string
	// QuorumThreshold of 0 means "use the configured default".
	QuorumThreshold float64
	StartTime       time.Time
	EndTime         time.Time
}

type Eligibility struct {
	Eligible bool
	Weight   float64
	Reason   string
}

type ListVotesFilter struct {
	Limit  int
	Offset int
}

type ListVotingsFilter struct {
	// OSBBID scopes the listing to one organization plus global votings.
	// Nil with All unset lists global votings only.
	OSBBID *string
	All    bool
	Limit  int
	Offset int
}
