package voting

import (
	"context"
	"time"
)

// Repository owns voting and vote rows exclusively; no other component
// mutates them.
type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	CreateVoting(ctx context.Context, voting *Voting) error
	GetVoting(ctx context.Context, votingID string) (*Voting, error)
	// GetVotingForUpdate locks the voting row for the remainder of the
	// surrounding transaction. Holding the lock makes RecordVote and Close
	// mutually exclusive per voting.
	GetVotingForUpdate(ctx context.Context, votingID string) (*Voting, error)
	ListVotings(ctx context.Context, filter ListVotingsFilter) ([]Voting, int64, error)
	UpdateVotingStatus(ctx context.Context, votingID, status string) error
	// SetVotingResult flips the status and writes the result snapshot in one
	// statement.
	SetVotingResult(ctx context.Context, votingID, status string, result []byte) error
	// CreateVote returns ErrDuplicateVote when a vote for the same
	// (voting, user) pair already exists.
	CreateVote(ctx context.Context, vote *Vote) error
	ListVotes(ctx context.Context, votingID string, filter ListVotesFilter) ([]Vote, int64, error)
	ListAllVotes(ctx context.Context, votingID string) ([]Vote, error)
	// ListExpiredVotingIDs returns active votings whose end_time has passed.
	ListExpiredVotingIDs(ctx context.Context, now time.Time) ([]string, error)
}
