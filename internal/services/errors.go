package services

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrCartConflict means another request changed the cart first.
	ErrCartConflict = errors.New("cart was modified by another request, please retry")
	// ErrPaymentsDisabled is returned when no payment gateway is configured.
	ErrPaymentsDisabled = errors.New("payments are not configured")
	// ErrInvalidSignature means a webhook payload failed verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// mapNotFound turns gorm's record-not-found into a NotFoundError.
func mapNotFound(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(resource)
	}
	return err
}
