package directory

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrApartmentNotFound    = errors.New("apartment not found")
	ErrOrganizationNotFound = errors.New("organization not found")
)
