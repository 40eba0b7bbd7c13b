package dispatch

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure taxonomy surfaced to callers. Every dispatcher failure unwraps to
// exactly one of these kinds; nothing else escapes.
var (
	// ErrInvalidFormat: unrecognized or missing extension. No state mutated.
	ErrInvalidFormat = errors.New("unsupported or missing file extension")

	// ErrRateLimited: daily quota exhausted for (client, day). No conversion
	// attempted.
	ErrRateLimited = errors.New("daily conversion limit reached")

	// ErrConversionFailed: converter-level failure (corrupt input, rendering
	// error, timeout). The quota unit is already debited.
	ErrConversionFailed = errors.New("conversion failed")
)

// PersistenceError marks ledger or audit store failures. These are
// request-fatal: accounting correctness cannot be guaranteed, so the caller
// sees only a generic server error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// HTTPStatus maps a dispatcher failure to its HTTP-equivalent status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the error text safe to surface to clients. Persistence
// details never leak.
func UserMessage(err error) string {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return "internal error"
	}
	switch {
	case errors.Is(err, ErrInvalidFormat):
		return ErrInvalidFormat.Error()
	case errors.Is(err, ErrRateLimited):
		return ErrRateLimited.Error()
	case errors.Is(err, ErrConversionFailed):
		return ErrConversionFailed.Error()
	default:
		return "internal error"
	}
}
