package voting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"osbb-app-go/internal/domain/directory"
)

const (
	// ActorSystem marks audit entries written by the auto-close sweep.
	ActorSystem = "system"

	defaultQuorumThreshold = 0.5
)

// DirectoryReader is the slice of the directory the eligibility resolver
// needs. Satisfied by *directory.Service.
type DirectoryReader interface {
	GetUser(ctx context.Context, userID string) (*directory.User, error)
	GetApartment(ctx context.Context, apartmentID string) (*directory.Apartment, error)
	TotalRegisteredArea(ctx context.Context, orgID *string) (float64, error)
}

// AuditLog records administrative actions. Satisfied by *audit.Service.
type AuditLog interface {
	Record(ctx context.Context, actorID, votingID, action, detail string) error
}

type Service struct {
	repo          Repository
	directory     DirectoryReader
	audit         AuditLog
	clock         Clock
	quorumDefault float64
}

func NewService(repo Repository, dir DirectoryReader, auditLog AuditLog, clock Clock, quorumDefault float64) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	if quorumDefault <= 0 || quorumDefault > 1 {
		quorumDefault = defaultQuorumThreshold
	}
	return &Service{
		repo:          repo,
		directory:     dir,
		audit:         auditLog,
		clock:         clock,
		quorumDefault: quorumDefault,
	}
}

func (s *Service) CreateVoting(ctx context.Context, actorID string, input CreateVotingInput) (*Voting, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if input.Type != TypeSimple && input.Type != TypeLegal {
		return nil, fmt.Errorf("%w: unknown type %q", ErrValidation, input.Type)
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, fmt.Errorf("%w: end_time must be after start_time", ErrValidation)
	}

	threshold := input.QuorumThreshold
	if threshold == 0 {
		threshold = s.quorumDefault
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: quorum_threshold must be in (0, 1]", ErrValidation)
	}

	voting := Voting{
		ID:              uuid.NewString(),
		OSBBID:          input.OSBBID,
		Title:           title,
		Description:     strings.TrimSpace(input.Description),
		Type:            input.Type,
		Status:          StatusDraft,
		QuorumThreshold: threshold,
		StartTime:       input.StartTime.UTC(),
		EndTime:         input.EndTime.UTC(),
	}

	if err := s.repo.CreateVoting(ctx, &voting); err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, actorID, voting.ID, "voting_created", voting.Title); err != nil {
		return nil, err
	}

	return &voting, nil
}

func (s *Service) GetVoting(ctx context.Context, votingID string) (*Voting, error) {
	return s.repo.GetVoting(ctx, votingID)
}

func (s *Service) ListVotings(ctx context.Context, filter ListVotingsFilter) ([]Voting, int64, error) {
	return s.repo.ListVotings(ctx, filter)
}

func (s *Service) Activate(ctx context.Context, actorID, votingID string) (*Voting, error) {
	var activated Voting
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		voting, err := tx.GetVotingForUpdate(ctx, votingID)
		if err != nil {
			return err
		}
		if voting.Status != StatusDraft {
			return fmt.Errorf("%w: cannot activate a %s voting", ErrInvalidTransition, voting.Status)
		}
		if err := tx.UpdateVotingStatus(ctx, votingID, StatusActive); err != nil {
			return err
		}
		voting.Status = StatusActive
		activated = *voting
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, actorID, votingID, "voting_activated", ""); err != nil {
		return nil, err
	}

	return &activated, nil
}

// Cancel halts a draft or active voting. Cast votes are retained for audit
// but no result is ever produced.
func (s *Service) Cancel(ctx context.Context, actorID, votingID string) (*Voting, error) {
	var cancelled Voting
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		voting, err := tx.GetVotingForUpdate(ctx, votingID)
		if err != nil {
			return err
		}
		if voting.Status != StatusDraft && voting.Status != StatusActive {
			return fmt.Errorf("%w: cannot cancel a %s voting", ErrInvalidTransition, voting.Status)
		}
		if err := tx.UpdateVotingStatus(ctx, votingID, StatusCancelled); err != nil {
			return err
		}
		voting.Status = StatusCancelled
		cancelled = *voting
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, actorID, votingID, "voting_cancelled", ""); err != nil {
		return nil, err
	}

	return &cancelled, nil
}

// Close tallies an active voting and transitions it to finished. The tally
// runs inside the transaction that holds the voting row lock, so it observes
// a consistent vote snapshot and excludes concurrent RecordVote calls.
func (s *Service) Close(ctx context.Context, actorID, votingID string) (*Voting, error) {
	closed, err := s.closeVoting(ctx, votingID, false)
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, actorID, votingID, "voting_closed", closed.resultDetail()); err != nil {
		return nil, err
	}

	return closed, nil
}

// CloseExpired closes every active voting whose end_time has passed. Unlike
// Close it tolerates races with explicit closure: a voting that is no longer
// active by the time its row lock is acquired is skipped, not an error, so
// duplicate sweep triggers are harmless.
func (s *Service) CloseExpired(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpiredVotingIDs(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}

	closedCount := 0
	for _, id := range ids {
		closed, err := s.closeVoting(ctx, id, true)
		if err != nil {
			return closedCount, err
		}
		if closed == nil {
			continue
		}
		if err := s.audit.Record(ctx, ActorSystem, id, "voting_swept", closed.resultDetail()); err != nil {
			return closedCount, err
		}
		closedCount++
	}

	return closedCount, nil
}

func (s *Service) closeVoting(ctx context.Context, votingID string, lenient bool) (*Voting, error) {
	var closed *Voting
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		voting, err := tx.GetVotingForUpdate(ctx, votingID)
		if err != nil {
			return err
		}
		if voting.Status != StatusActive {
			if lenient {
				return nil
			}
			return fmt.Errorf("%w: cannot close a %s voting", ErrInvalidTransition, voting.Status)
		}

		votes, err := tx.ListAllVotes(ctx, votingID)
		if err != nil {
			return err
		}

		result := Tally(voting, votes, s.clock.Now())
		snapshot, err := json.Marshal(result)
		if err != nil {
			return err
		}

		if err := tx.SetVotingResult(ctx, votingID, StatusFinished, snapshot); err != nil {
			return err
		}

		voting.Status = StatusFinished
		voting.Result = snapshot
		closed = voting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// RecordVote validates eligibility and stores a vote. The status and time
// checks happen inside the same transaction as the insert, under the voting
// row lock, so a concurrent Close cannot slip between check and insert. The
// (voting, user) unique index is the backstop that guarantees exactly one
// winner among concurrent submissions for the same pair.
func (s *Service) RecordVote(ctx context.Context, userID, votingID, choice string) (*Vote, error) {
	if choice != ChoiceFor && choice != ChoiceAgainst && choice != ChoiceAbstain {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}

	var vote Vote
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		voting, err := tx.GetVotingForUpdate(ctx, votingID)
		if err != nil {
			return err
		}
		if voting.Status != StatusActive {
			return fmt.Errorf("%w: voting is %s", ErrVotingNotActive, voting.Status)
		}

		now := s.clock.Now()
		if now.Before(voting.StartTime) || now.After(voting.EndTime) {
			return fmt.Errorf("%w: outside voting window", ErrVotingNotActive)
		}

		eligibility, err := s.ResolveEligibility(ctx, voting, userID)
		if err != nil {
			return err
		}
		if !eligibility.Eligible {
			return fmt.Errorf("%w: %s", ErrNotEligible, eligibility.Reason)
		}

		vote = Vote{
			ID:       uuid.NewString(),
			VotingID: votingID,
			UserID:   userID,
			Choice:   choice,
			Weight:   eligibility.Weight,
			CastAt:   now,
		}
		return tx.CreateVote(ctx, &vote)
	})
	if err != nil {
		return nil, err
	}

	return &vote, nil
}

// ResolveEligibility decides whether a user may vote and what weight the
// vote carries. Weights are resolved against the current directory state;
// the caller freezes the returned weight on the vote row.
func (s *Service) ResolveEligibility(ctx context.Context, voting *Voting, userID string) (Eligibility, error) {
	user, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return Eligibility{}, err
	}

	if user.ApartmentID == nil {
		return Eligibility{Reason: "no apartment association"}, nil
	}
	if voting.OSBBID != nil {
		if user.OSBBID == nil || *user.OSBBID != *voting.OSBBID {
			return Eligibility{Reason: "outside voting organization"}, nil
		}
	}

	if voting.Type == TypeSimple {
		return Eligibility{Eligible: true, Weight: 1.0}, nil
	}

	apartment, err := s.directory.GetApartment(ctx, *user.ApartmentID)
	if err != nil {
		return Eligibility{}, err
	}
	totalArea, err := s.directory.TotalRegisteredArea(ctx, voting.OSBBID)
	if err != nil {
		return Eligibility{}, err
	}
	if totalArea <= 0 {
		return Eligibility{Reason: "no registered area in scope"}, nil
	}

	return Eligibility{Eligible: true, Weight: apartment.Area / totalArea}, nil
}

func (s *Service) ListVotes(ctx context.Context, votingID string, filter ListVotesFilter) ([]Vote, int64, error) {
	if _, err := s.repo.GetVoting(ctx, votingID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListVotes(ctx, votingID, filter)
}

// Result returns the persisted result snapshot of a finished voting, raw as
// stored: repeated reads are byte-identical.
func (s *Service) Result(ctx context.Context, votingID string) (json.RawMessage, error) {
	voting, err := s.repo.GetVoting(ctx, votingID)
	if err != nil {
		return nil, err
	}
	if voting.Status != StatusFinished || len(voting.Result) == 0 {
		return nil, fmt.Errorf("%w: voting is %s", ErrResultNotAvailable, voting.Status)
	}
	return json.RawMessage(voting.Result), nil
}

// PreviewResult computes a live, non-persisted tally of an active voting.
func (s *Service) PreviewResult(ctx context.Context, votingID string) (*Result, error) {
	voting, err := s.repo.GetVoting(ctx, votingID)
	if err != nil {
		return nil, err
	}
	if voting.Status != StatusActive {
		return nil, fmt.Errorf("%w: voting is %s", ErrVotingNotActive, voting.Status)
	}

	votes, err := s.repo.ListAllVotes(ctx, votingID)
	if err != nil {
		return nil, err
	}

	result := Tally(voting, votes, s.clock.Now())
	return &result, nil
}

func (v *Voting) resultDetail() string {
	if v == nil || len(v.Result) == 0 {
		return ""
	}
	var result Result
	if err := json.Unmarshal(v.Result, &result); err != nil {
		return ""
	}
	if result.Reason != "" {
		return result.Outcome + ": " + result.Reason
	}
	return result.Outcome
}
