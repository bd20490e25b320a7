package directory

import "context"

// Repository is read-only: the directory is reference data owned by external
// tooling, never mutated by this service.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	GetApartment(ctx context.Context, apartmentID string) (*Apartment, error)
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)
	// TotalRegisteredArea sums apartment areas for one organization, or for
	// every organization when orgID is nil (global votings).
	TotalRegisteredArea(ctx context.Context, orgID *string) (float64, error)
}
