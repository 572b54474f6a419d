package executor

import (
	"errors"
	"fmt"
)

// ErrInsufficientBalance rejects a BUY whose cost exceeds available cash.
var ErrInsufficientBalance = errors.New("executor: insufficient balance")

// ErrOrderPending rejects a signal while another order on the same market
// is still in flight.
var ErrOrderPending = errors.New("executor: pending order exists for market")

// ValidationError rejects a malformed or unapproved signal before any
// ledger mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("executor: invalid signal: %s", e.Reason)
}

func validationErrf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a signal validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
