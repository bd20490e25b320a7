package directory

import (
	"context"
	"errors"

	"gorm.io/gorm"
	directorydomain "osbb-app-go/internal/domain/directory"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetUser(ctx context.Context, userID string) (*directorydomain.User, error) {
	var user directorydomain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, directorydomain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) GetApartment(ctx context.Context, apartmentID string) (*directorydomain.Apartment, error) {
	var apartment directorydomain.Apartment
	if err := r.db.WithContext(ctx).First(&apartment, "id = ?", apartmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, directorydomain.ErrApartmentNotFound
		}
		return nil, err
	}
	return &apartment, nil
}

func (r *PostgresRepository) GetOrganization(ctx context.Context, orgID string) (*directorydomain.Organization, error) {
	var org directorydomain.Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, directorydomain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *PostgresRepository) TotalRegisteredArea(ctx context.Context, orgID *string) (float64, error) {
	query := r.db.WithContext(ctx).Model(&directorydomain.Apartment{})
	if orgID != nil {
		query = query.Where("osbb_id = ?", *orgID)
	}

	var total *float64
	if err := query.Select("SUM(area)").Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
