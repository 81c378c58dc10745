package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/beeper/cfu-relay/internal/cfu"
)

type sentReport struct {
	ReportID byte
	Payload  []byte
}

// recordingChannel captures delivered reports and can be told to fail.
type recordingChannel struct {
	mu   sync.Mutex
	sent []sentReport
	fail error
	ch   chan sentReport
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{ch: make(chan sentReport, 1024)}
}

func (c *recordingChannel) Deliver(_ context.Context, reportID byte, payload []byte) error {
	c.mu.Lock()
	fail := c.fail
	c.mu.Unlock()
	if fail != nil {
		return fail
	}

	r := sentReport{ReportID: reportID, Payload: append([]byte(nil), payload...)}
	c.mu.Lock()
	c.sent = append(c.sent, r)
	c.mu.Unlock()
	c.ch <- r
	return nil
}

func (c *recordingChannel) setFail(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

func (c *recordingChannel) wait(t *testing.T, n int) []sentReport {
	t.Helper()
	out := make([]sentReport, 0, n)
	deadline := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case r := <-c.ch:
			out = append(out, r)
		case <-deadline:
			t.Fatalf("timed out waiting for %d reports, got %d", n, len(out))
		}
	}
	return out
}

var testState = State{
	ComponentID: 0x20,
	Version:     cfu.Version{Major: 3, Minor: 1, Variant: 0x04},
}

func newTestEngine(t *testing.T, ch Channel, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	e, err := New(testState, ch, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

// runEngine starts the transmitter and stops it when the test ends.
func runEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("transmitter did not stop")
		}
	})
}

func TestNewRejectsNilChannel(t *testing.T) {
	if _, err := New(testState, nil); err == nil {
		t.Fatalf("expected error for nil channel")
	}
}

func TestNewRejectsCollidingReportIDs(t *testing.T) {
	ids := DefaultReportIDs()
	ids.PayloadOutput = ids.OfferOutput
	if _, err := New(testState, newRecordingChannel(), WithReportIDs(ids)); err == nil {
		t.Fatalf("expected error for shared output id")
	}

	ids = DefaultReportIDs()
	ids.PayloadInput = ids.OfferInput
	if _, err := New(testState, newRecordingChannel(), WithReportIDs(ids)); err == nil {
		t.Fatalf("expected error for shared input id")
	}
}

func TestEnginesAreIndependent(t *testing.T) {
	a := newTestEngine(t, newRecordingChannel())
	other := State{ComponentID: 0x31, Version: cfu.Version{Major: 9}}
	b, err := New(other, newRecordingChannel(), WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if err := a.HandleOutputReport(cfu.ReportOfferOutput, cfu.EncodeOffer(cfu.OfferCommand{Info: cfu.ComponentInfo{ComponentID: 1, Token: 1}}), nil); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if a.Pending() != 1 || b.Pending() != 0 {
		t.Fatalf("queues leaked between engines: a=%d b=%d", a.Pending(), b.Pending())
	}
	if a.State() != testState || b.State() != other {
		t.Fatalf("unexpected states: %+v %+v", a.State(), b.State())
	}
}
