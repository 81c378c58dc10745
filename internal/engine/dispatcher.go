package engine

import (
	"errors"
	"fmt"

	"github.com/beeper/cfu-relay/internal/cfu"
	"github.com/beeper/cfu-relay/internal/metrics"
)

// minOutputReportSize is the smallest buffer any output report may use.
const minOutputReportSize = cfu.ContentHeaderSize

// Ack completes an inbound write. A nil error acknowledges success.
type Ack func(err error)

// HandleOutputReport ingests one output report. On success the response is
// built, ack is called with nil, and only then is the response queued and
// the transmitter woken, so no response can go out ahead of its ack. On
// failure nothing is queued and ack receives the same error that is
// returned. It never blocks. ack may be nil.
func (e *Engine) HandleOutputReport(reportID byte, data []byte, ack Ack) error {
	buf, err := e.writeReport(reportID, data)
	metrics.Reports.WithLabelValues(e.reportLabel(reportID), Reason(err)).Inc()

	if ack != nil {
		ack(err)
	}
	if err != nil {
		e.log.Debug().
			Err(err).
			Uint8("report_id", reportID).
			Int("len", len(data)).
			Msg("Rejected output report")
		return err
	}

	e.queue.Enqueue(buf)
	e.queue.Notify()
	return nil
}

// writeReport validates and answers one report into a pool buffer.
func (e *Engine) writeReport(reportID byte, data []byte) (*Buffer, error) {
	if len(data) < minOutputReportSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(data))
	}

	var minSize int
	switch reportID {
	case e.ids.OfferOutput:
		minSize = cfu.OfferCommandSize
	case e.ids.PayloadOutput:
		minSize = cfu.ContentHeaderSize
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownReport, reportID)
	}
	if len(data) < minSize {
		return nil, fmt.Errorf("%w: report 0x%02X needs %d bytes, got %d", ErrInvalidLength, reportID, minSize, len(data))
	}

	buf, err := e.pool.Fetch()
	if err != nil {
		e.log.Error().Err(err).Msg("No response buffer available")
		if !errors.Is(err, ErrResourceExhausted) {
			err = fmt.Errorf("%w: %w", ErrResourceExhausted, err)
		}
		return nil, err
	}

	env, err := e.respond(reportID, data)
	if err != nil {
		e.pool.Release(buf)
		if errors.Is(err, cfu.ErrTooShort) {
			err = fmt.Errorf("%w: %w", ErrInvalidLength, err)
		}
		return nil, err
	}

	buf.Envelope = env
	buf.Size = env.Size()
	return buf, nil
}

func (e *Engine) respond(reportID byte, data []byte) (Envelope, error) {
	if reportID == e.ids.OfferOutput {
		cmd, err := cfu.DecodeOffer(data)
		if err != nil {
			return Envelope{}, err
		}
		return OfferEnvelope(e.HandleOffer(cmd)), nil
	}

	cmd, err := cfu.DecodeContent(data)
	if err != nil {
		return Envelope{}, err
	}
	return ContentEnvelope(e.HandleContent(cmd)), nil
}

func (e *Engine) reportLabel(reportID byte) string {
	switch reportID {
	case e.ids.OfferOutput:
		return "offer"
	case e.ids.PayloadOutput:
		return "content"
	default:
		return "unknown"
	}
}
