package directory

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetUser(ctx, userID)
}

func (s *Service) GetApartment(ctx context.Context, apartmentID string) (*Apartment, error) {
	return s.repo.GetApartment(ctx, apartmentID)
}

func (s *Service) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	return s.repo.GetOrganization(ctx, orgID)
}

func (s *Service) TotalRegisteredArea(ctx context.Context, orgID *string) (float64, error) {
	return s.repo.TotalRegisteredArea(ctx, orgID)
}
