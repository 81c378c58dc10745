// Package engine is the CFU device-side protocol engine.
//
// Output reports are handled synchronously by HandleOutputReport: the report
// is decoded and answered, the caller acknowledged, and only then the answer
// queued. Run is the single consumer that drains the queue and hands
// every answer to the outbound Channel. Feature reports are answered in the
// calling goroutine and never touch the queue.
//
// Shutdown is the owner's job and has an order: stop calling
// HandleOutputReport, then cancel the context given to Run.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beeper/cfu-relay/internal/cfu"
)

// DefaultPoolSize is the number of response buffers a device gets unless
// configured otherwise.
const DefaultPoolSize = 16

// State is the identity the engine reports to version queries. It is fixed
// for the life of an engine; accepted offers do not change it.
type State struct {
	ComponentID byte
	Version     cfu.Version
}

// ReportIDs assigns report ids to the report kinds.
type ReportIDs struct {
	VersionsFeature byte
	OfferOutput     byte
	OfferInput      byte
	PayloadOutput   byte
	PayloadInput    byte
}

func DefaultReportIDs() ReportIDs {
	return ReportIDs{
		VersionsFeature: cfu.ReportVersionsFeature,
		OfferOutput:     cfu.ReportOfferOutput,
		OfferInput:      cfu.ReportOfferInput,
		PayloadOutput:   cfu.ReportPayloadOutput,
		PayloadInput:    cfu.ReportPayloadInput,
	}
}

// Validate rejects assignments where two reports travelling the same
// direction share an id.
func (r ReportIDs) Validate() error {
	if r.OfferOutput == r.PayloadOutput {
		return fmt.Errorf("offer and payload output reports share id 0x%02X", r.OfferOutput)
	}
	if r.OfferInput == r.PayloadInput {
		return fmt.Errorf("offer and payload input reports share id 0x%02X", r.OfferInput)
	}
	return nil
}

// Channel delivers input reports to the host.
type Channel interface {
	Deliver(ctx context.Context, reportID byte, payload []byte) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, reportID byte, payload []byte) error

func (f ChannelFunc) Deliver(ctx context.Context, reportID byte, payload []byte) error {
	return f(ctx, reportID, payload)
}

// ContentSink receives every decoded content block. Persisting or flashing
// the data is up to the sink; the engine does not act on its result beyond
// logging it.
type ContentSink interface {
	Store(cmd cfu.ContentCommand) error
}

type Engine struct {
	log     zerolog.Logger
	state   State
	ids     ReportIDs
	pool    BufferPool
	queue   *Queue
	channel Channel
	sink    ContentSink

	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

func WithReportIDs(ids ReportIDs) Option {
	return func(e *Engine) {
		e.ids = ids
	}
}

// WithBufferPool replaces the default fixed pool.
func WithBufferPool(pool BufferPool) Option {
	return func(e *Engine) {
		e.pool = pool
	}
}

func WithContentSink(sink ContentSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// New creates an engine answering as state and transmitting through ch.
func New(state State, ch Channel, opts ...Option) (*Engine, error) {
	if ch == nil {
		return nil, fmt.Errorf("engine: nil channel")
	}

	e := &Engine{
		log: log.With().
			Str("component", "engine").
			Logger(),
		state:   state,
		ids:     DefaultReportIDs(),
		queue:   NewQueue(),
		channel: ch,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pool == nil {
		e.pool = NewBufferPool(DefaultPoolSize)
	}
	if err := e.ids.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) ReportIDs() ReportIDs {
	return e.ids
}

// Pending reports how many responses are queued for transmission.
func (e *Engine) Pending() int {
	return e.queue.Len()
}
