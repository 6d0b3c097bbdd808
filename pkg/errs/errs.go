package errs

import (
	"errors"
	"fmt"
	"strings"

	cr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Error taxonomy shared by every engine component
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrFailedPrecondition = errors.New("failed precondition")

	// Auction state errors
	ErrNotStarted       = errors.New("auction has not started")
	ErrEnded            = errors.New("auction has ended")
	ErrAlreadyCompleted = errors.New("auction already completed")
)

// InsufficientStockError reports the item that could not be reserved
type InsufficientStockError struct {
	ShopID uuid.UUID
	ItemID uuid.UUID
}

func (e *InsufficientStockError) Error() string {
	if e.ShopID == uuid.Nil {
		return fmt.Sprintf("insufficient stock for item %s", e.ItemID)
	}
	return fmt.Sprintf("insufficient stock for item %s in shop %s", e.ItemID, e.ShopID)
}

// Is lets errors.Is(err, ErrInsufficientStock) match the typed error
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsBusiness reports whether err is an expected business failure rather than a system fault
func IsBusiness(err error) bool {
	for _, target := range []error{
		ErrInvalidArgument,
		ErrNotFound,
		ErrInsufficientStock,
		ErrFailedPrecondition,
		ErrNotStarted,
		ErrEnded,
		ErrAlreadyCompleted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

// Combine keeps primary as the visible error and attaches secondary (e.g. a failed compensation) as detail
func Combine(primary, secondary error) error {
	return cr.CombineErrors(primary, secondary)
}

func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	s := fmt.Sprintf("%+v", err)
	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
