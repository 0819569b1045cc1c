package service

import (
	"errors"
	"fmt"

	"github.com/rpk6432/library-service/internal/payment"
	"github.com/rpk6432/library-service/internal/repository"
)

// Error kinds surfaced by lifecycle, payment and query operations.  Match
// them with errors.Is.
var (
	ErrNotFound        = repository.ErrNotFound
	ErrOutOfStock      = repository.ErrOutOfStock
	ErrInvalidDate     = errors.New("expected return date must be in the future")
	ErrAlreadyReturned = errors.New("this borrowing has already been returned")
	ErrPaymentSession  = errors.New("payment session could not be created")
	ErrInvalidSession  = payment.ErrInvalidSession
	ErrGateway         = errors.New("payment gateway error")
)

// ErrForbidden is returned when the caller is neither the owner nor staff.
// It wraps ErrNotFound so that callers who only check for "not found"
// cannot tell an invisible record from a missing one.
var ErrForbidden = fmt.Errorf("forbidden: %w", ErrNotFound)
