package voting

import "errors"

var (
	ErrVotingNotFound     = errors.New("voting not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrDuplicateVote      = errors.New("vote already cast")
	ErrNotEligible        = errors.New("not eligible to vote")
	ErrInvalidChoice      = errors.New("invalid choice")
	ErrVotingNotActive    = errors.New("voting not active")
	ErrValidation         = errors.New("invalid voting")
	ErrResultNotAvailable = errors.New("result not available")
)
