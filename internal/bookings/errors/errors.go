package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrDuplicateActive = errors.New("an active booking already exists for this customer and provider")

	ErrIllegalTransition = errors.New("illegal lifecycle transition")

	ErrDeadlineElapsed = errors.New("deadline for this action has elapsed")

	ErrStaleTransition = errors.New("booking status changed concurrently")
)
