package engine

import (
	"errors"

	"github.com/beeper/cfu-relay/internal/cfu"
)

var (
	// ErrInvalidLength rejects a report smaller than its layout.
	ErrInvalidLength = errors.New("engine: invalid report length")
	// ErrUnknownReport rejects a report id no handler owns.
	ErrUnknownReport = errors.New("engine: unknown report id")
	// ErrResourceExhausted rejects a report when no response buffer is free.
	ErrResourceExhausted = errors.New("engine: response buffers exhausted")
	// ErrDeliveryFailed marks a response the outbound channel did not take.
	ErrDeliveryFailed = errors.New("engine: response delivery failed")
	// ErrInvariantViolation marks an envelope with no known tag. It is only
	// ever raised through a panic.
	ErrInvariantViolation = errors.New("engine: invariant violation")
)

// Reason names the outcome of handling a report. It is used as a metric
// label and as the error code reported back to hosts.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidLength), errors.Is(err, cfu.ErrTooShort):
		return "invalid_length"
	case errors.Is(err, ErrUnknownReport):
		return "unknown_report"
	case errors.Is(err, ErrResourceExhausted):
		return "exhausted"
	default:
		return "error"
	}
}
