package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/beeper/cfu-relay/internal/metrics"
)

var errAlreadyRunning = errors.New("engine: transmitter already running")

// Run is the transmitter loop. It waits for work, drains the queue and
// delivers every response in enqueue order, until ctx is done. Only one Run
// may be active per engine.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer e.running.Store(false)

	e.log.Debug().Msg("Transmitter started")
	for {
		select {
		case <-ctx.Done():
			e.discard()
			e.log.Debug().Msg("Transmitter stopped")
			return ctx.Err()
		case <-e.queue.Ready():
			e.transmit(ctx)
		}
	}
}

// transmit drains the queue once and returns how many responses were
// delivered.
func (e *Engine) transmit(ctx context.Context) int {
	delivered := 0
	for _, buf := range e.queue.Drain() {
		if err := e.send(ctx, buf); err == nil {
			delivered++
		}
	}
	return delivered
}

// send delivers one buffer and releases it, whatever the outcome. Failed
// deliveries are not retried.
func (e *Engine) send(ctx context.Context, buf *Buffer) error {
	defer e.pool.Release(buf)

	reportID := e.inputReportID(buf.Envelope.Kind)
	payload, err := buf.Envelope.Bytes()
	if err != nil {
		panic(err)
	}
	if buf.Size > 0 && buf.Size < len(payload) {
		payload = payload[:buf.Size]
	}

	kind := buf.Envelope.Kind.String()
	if err := e.channel.Deliver(ctx, reportID, payload); err != nil {
		metrics.Responses.WithLabelValues(kind, "failed").Inc()
		e.log.Error().
			Err(err).
			Uint8("report_id", reportID).
			Str("kind", kind).
			Msg("Send input report failed")
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	metrics.Responses.WithLabelValues(kind, "ok").Inc()
	e.log.Debug().
		Uint8("report_id", reportID).
		Str("kind", kind).
		Msg("Sent input report")
	return nil
}

func (e *Engine) inputReportID(kind ResponseKind) byte {
	switch kind {
	case KindOffer:
		return e.ids.OfferInput
	case KindContent:
		return e.ids.PayloadInput
	default:
		panic(fmt.Errorf("%w: no input report for %s", ErrInvariantViolation, kind))
	}
}

// discard releases whatever is still queued without sending it.
func (e *Engine) discard() {
	dropped := e.queue.Drain()
	for _, buf := range dropped {
		e.pool.Release(buf)
	}
	if len(dropped) > 0 {
		e.log.Warn().Int("count", len(dropped)).Msg("Dropped untransmitted responses")
	}
}
