package audit

import "context"

type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	ListByVoting(ctx context.Context, votingID string) ([]Entry, error)
}
