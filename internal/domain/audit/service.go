package audit

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Record(ctx context.Context, actorID, votingID, action, detail string) error {
	entry := Entry{
		ID:      uuid.NewString(),
		ActorID: actorID,
		Action:  action,
		Detail:  detail,
	}
	if votingID != "" {
		entry.VotingID = &votingID
	}
	return s.repo.Append(ctx, &entry)
}

func (s *Service) ListByVoting(ctx context.Context, votingID string) ([]Entry, error) {
	return s.repo.ListByVoting(ctx, votingID)
}
