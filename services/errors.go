package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned before any side effect when a request is malformed.
	ErrValidation = errors.New("validation failed")
	// ErrNegativeXP is a validation error raised by the accumulator.
	ErrNegativeXP = fmt.Errorf("%w: xp amount must not be negative", ErrValidation)
	// ErrAlreadyCompleted means a live completion already exists for the mission key.
	ErrAlreadyCompleted = errors.New("mission already completed")
	ErrMissionNotFound  = errors.New("mission not found")
	ErrMissionNotActive = errors.New("mission is not active")

	// Infrastructure errors returned by adapters and folded into results by the dispatcher.
	ErrAdapterUnavailable = errors.New("verification source unavailable")
	ErrInvalidAddress     = errors.New("invalid wallet address")
	ErrSocialAuthExpired  = errors.New("social account authorization expired")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
