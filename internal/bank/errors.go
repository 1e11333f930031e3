package bank

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"bloodnet.org/internal/inventory"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyCompleted  = errors.New("donation slot already completed")
	ErrNotEligible       = errors.New("donor is not eligible")
	ErrTooSoon           = errors.New("too soon since last donation")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("operation not permitted")
	ErrInsufficientStock = inventory.ErrInsufficientStock
)

// TooSoonError reports a donation attempted inside the deferral window.
type TooSoonError struct {
	LastDonation  time.Time
	EligibleOn    time.Time
	DaysRemaining int
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("too soon since last donation on %s: %d days remaining (eligible on %s)",
		e.LastDonation.Format(dateLayout), e.DaysRemaining, e.EligibleOn.Format(dateLayout))
}

func (e *TooSoonError) Unwrap() error { return ErrTooSoon }

const dateLayout = "2006-01-02"

// Code maps an engine error onto a stable machine-readable code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrTooSoon):
		return "too_soon"
	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, inventory.ErrOverwriteRejected):
		return "overwrite_rejected"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, inventory.ErrInvalidUnits),
		errors.Is(err, inventory.ErrInvalidGroup),
		errors.Is(err, inventory.ErrSamePool):
		return "invalid_input"
	}
	return "internal"
}

func invalid(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}
