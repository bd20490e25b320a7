package audit

import (
	"context"

	"gorm.io/gorm"
	auditdomain "osbb-app-go/internal/domain/audit"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, entry *auditdomain.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *PostgresRepository) ListByVoting(ctx context.Context, votingID string) ([]auditdomain.Entry, error) {
	var entries []auditdomain.Entry
	if err := r.db.WithContext(ctx).
		Where("voting_id = ?", votingID).
		Order("created_at asc, id asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
