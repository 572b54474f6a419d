package venue

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned without any network call when the breaker is
// OPEN and the reset window has not elapsed.
var ErrCircuitOpen = errors.New("venue: circuit breaker open")

// HTTPError is a non-2xx response that was not retried away.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("venue: http %d: %s", e.Status, truncate(e.Body, 200))
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
