package voting

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	votingdomain "osbb-app-go/internal/domain/voting"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(votingdomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

func (r *PostgresRepository) CreateVoting(ctx context.Context, voting *votingdomain.Voting) error {
	return r.db.WithContext(ctx).Create(voting).Error
}

func (r *PostgresRepository) GetVoting(ctx context.Context, votingID string) (*votingdomain.Voting, error) {
	var voting votingdomain.Voting
	if err := r.db.WithContext(ctx).
		First(&voting, "id = ?", votingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, votingdomain.ErrVotingNotFound
		}
		return nil, err
	}
	return &voting, nil
}

func (r *PostgresRepository) GetVotingForUpdate(ctx context.Context, votingID string) (*votingdomain.Voting, error) {
	var voting votingdomain.Voting
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&voting, "id = ?", votingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, votingdomain.ErrVotingNotFound
		}
		return nil, err
	}
	return &voting, nil
}

func (r *PostgresRepository) ListVotings(ctx context.Context, filter votingdomain.ListVotingsFilter) ([]votingdomain.Voting, int64, error) {
	query := r.db.WithContext(ctx).Model(&votingdomain.Voting{})
	switch {
	case filter.All:
	case filter.OSBBID != nil:
		query = query.Where("osbb_id IS NULL OR osbb_id = ?", *filter.OSBBID)
	default:
		query = query.Where("osbb_id IS NULL")
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var items []votingdomain.Voting
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *PostgresRepository) UpdateVotingStatus(ctx context.Context, votingID, status string) error {
	return r.db.WithContext(ctx).
		Model(&votingdomain.Voting{}).
		Where("id = ?", votingID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *PostgresRepository) SetVotingResult(ctx context.Context, votingID, status string, result []byte) error {
	return r.db.WithContext(ctx).
		Model(&votingdomain.Voting{}).
		Where("id = ?", votingID).
		Updates(map[string]interface{}{
			"status":     status,
			"result":     result,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *PostgresRepository) CreateVote(ctx context.Context, vote *votingdomain.Vote) error {
	if err := r.db.WithContext(ctx).Create(vote).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return votingdomain.ErrDuplicateVote
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) ListVotes(ctx context.Context, votingID string, filter votingdomain.ListVotesFilter) ([]votingdomain.Vote, int64, error) {
	query := r.db.WithContext(ctx).Model(&votingdomain.Vote{}).Where("voting_id = ?", votingID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("cast_at desc, id desc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var items []votingdomain.Vote
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *PostgresRepository) ListAllVotes(ctx context.Context, votingID string) ([]votingdomain.Vote, error) {
	var votes []votingdomain.Vote
	if err := r.db.WithContext(ctx).
		Where("voting_id = ?", votingID).
		Order("cast_at asc, id asc").
		Find(&votes).Error; err != nil {
		return nil, err
	}
	return votes, nil
}

func (r *PostgresRepository) ListExpiredVotingIDs(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&votingdomain.Voting{}).
		Where("status = ? AND end_time < ?", votingdomain.StatusActive, now).
		Order("end_time asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
