// Package host is a CFU host speaking to a relay-hosted device over the
// device websocket.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beeper/cfu-relay/internal/cfu"
	"github.com/beeper/cfu-relay/internal/device"
	"github.com/beeper/cfu-relay/internal/engine"
)

var (
	ErrClosed        = errors.New("host: connection closed")
	ErrTokenMismatch = errors.New("host: offer response token mismatch")
	ErrSeqMismatch   = errors.New("host: content response sequence mismatch")
	ErrUnexpected    = errors.New("host: unexpected input report")
)

// inputBacklog bounds input reports received but not yet consumed.
const inputBacklog = 64

type Client struct {
	log zerolog.Logger
	ws  *websocket.Conn
	ids engine.ReportIDs

	writeMu sync.Mutex

	pendingMu sync.Mutex
	nextID    int
	pending   map[int]chan json.RawMessage

	inputs chan device.ReportData
	done   chan struct{}
	err    error
}

type Option func(*Client)

// WithReportIDs sets the report ids the relay was configured with.
func WithReportIDs(ids engine.ReportIDs) Option {
	return func(c *Client) {
		c.ids = ids
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

// Dial opens the device websocket at url, e.g.
// ws://localhost:8000/api/v1/device.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		log:     log.With().Str("component", "host").Logger(),
		ws:      ws,
		ids:     engine.DefaultReportIDs(),
		pending: make(map[int]chan json.RawMessage),
		inputs:  make(chan device.ReportData, inputBacklog),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.err = err
			return
		}

		var rawCommand device.RawCommand[json.RawMessage]
		if err := json.Unmarshal(message, &rawCommand); err != nil {
			c.log.Err(err).Msg("Failed to decode websocket message")
			continue
		}

		switch rawCommand.Command {
		case "response", "pong":
			c.pendingMu.Lock()
			ch, ok := c.pending[rawCommand.ReqID]
			delete(c.pending, rawCommand.ReqID)
			c.pendingMu.Unlock()
			if !ok {
				c.log.Warn().Int("req_id", rawCommand.ReqID).Msg("Response for unknown request")
				continue
			}
			ch <- rawCommand.Data
		case "input_report":
			var report device.ReportData
			if err := json.Unmarshal(rawCommand.Data, &report); err != nil {
				c.log.Err(err).Msg("Failed to decode input report")
				continue
			}
			select {
			case c.inputs <- report:
			default:
				c.log.Warn().Uint8("report_id", report.ReportID).Msg("Input backlog full, dropping report")
			}
		default:
			c.log.Warn().Str("command", rawCommand.Command).Msg("Received unknown command")
		}
	}
}

func (c *Client) closedErr() error {
	if c.err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, c.err)
	}
	return ErrClosed
}

// request sends a command and waits for the response carrying its id.
func (c *Client) request(ctx context.Context, command string, data any) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, c.closedErr()
	default:
	}

	ch := make(chan json.RawMessage, 1)

	c.pendingMu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.pendingMu.Unlock()

	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	buf, err := json.Marshal(device.RawCommand[any]{Command: command, ReqID: id, Data: data})
	if err != nil {
		forget()
		return nil, err
	}
	c.writeMu.Lock()
	err = c.ws.WriteMessage(websocket.TextMessage, buf)
	c.writeMu.Unlock()
	if err != nil {
		forget()
		return nil, fmt.Errorf("send %s: %w", command, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.done:
		forget()
		return nil, c.closedErr()
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	}
}

// reasonError maps a relay failure reason back onto the engine's errors.
func reasonError(ack device.AckData) error {
	var sentinel error
	switch ack.Reason {
	case "invalid_length":
		sentinel = engine.ErrInvalidLength
	case "unknown_report":
		sentinel = engine.ErrUnknownReport
	case "exhausted":
		sentinel = engine.ErrResourceExhausted
	default:
		return fmt.Errorf("relay: %s", ack.Error)
	}
	return fmt.Errorf("%w (relay: %s)", sentinel, ack.Error)
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, "ping", nil)
	return err
}

// Register registers the device. An empty req.Code asks the relay for a
// fresh code and secret.
func (c *Client) Register(ctx context.Context, req device.RegisterCommandData) (device.RegisterCommandData, error) {
	raw, err := c.request(ctx, "register", req)
	if err != nil {
		return device.RegisterCommandData{}, err
	}

	var resp struct {
		device.RegisterCommandData
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return device.RegisterCommandData{}, fmt.Errorf("decode register response: %w", err)
	}
	if resp.Error != "" {
		return device.RegisterCommandData{}, fmt.Errorf("register: %s", resp.Error)
	}
	return resp.RegisterCommandData, nil
}

// sendOutput sends an output report and waits for its acknowledgment.
func (c *Client) sendOutput(ctx context.Context, reportID byte, data []byte) error {
	raw, err := c.request(ctx, "output_report", device.ReportData{ReportID: reportID, Data: data})
	if err != nil {
		return err
	}
	var ack device.AckData
	if err := json.Unmarshal(raw, &ack); err != nil {
		return fmt.Errorf("decode ack: %w", err)
	}
	if !ack.OK {
		return reasonError(ack)
	}
	return nil
}

// nextInput waits for the next input report, which must carry reportID.
func (c *Client) nextInput(ctx context.Context, reportID byte) ([]byte, error) {
	select {
	case report := <-c.inputs:
		if report.ReportID != reportID {
			return nil, fmt.Errorf("%w: got report 0x%02X, want 0x%02X", ErrUnexpected, report.ReportID, reportID)
		}
		return report.Data, nil
	case <-c.done:
		return nil, c.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendOffer sends an offer and waits for the device's answer.
func (c *Client) SendOffer(ctx context.Context, offer cfu.OfferCommand) (cfu.OfferResponse, error) {
	if err := c.sendOutput(ctx, c.ids.OfferOutput, cfu.EncodeOffer(offer)); err != nil {
		return cfu.OfferResponse{}, fmt.Errorf("send offer: %w", err)
	}
	buf, err := c.nextInput(ctx, c.ids.OfferInput)
	if err != nil {
		return cfu.OfferResponse{}, fmt.Errorf("await offer response: %w", err)
	}
	resp, err := cfu.DecodeOfferResponse(buf)
	if err != nil {
		return cfu.OfferResponse{}, err
	}
	if resp.Token != offer.Token() {
		return resp, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrTokenMismatch, resp.Token, offer.Token())
	}
	return resp, nil
}

// SendContent sends one content block and waits for the device's answer.
func (c *Client) SendContent(ctx context.Context, content cfu.ContentCommand) (cfu.ContentResponse, error) {
	if err := c.sendOutput(ctx, c.ids.PayloadOutput, cfu.EncodeContent(content)); err != nil {
		return cfu.ContentResponse{}, fmt.Errorf("send content: %w", err)
	}
	buf, err := c.nextInput(ctx, c.ids.PayloadInput)
	if err != nil {
		return cfu.ContentResponse{}, fmt.Errorf("await content response: %w", err)
	}
	resp, err := cfu.DecodeContentResponse(buf)
	if err != nil {
		return cfu.ContentResponse{}, err
	}
	if resp.SequenceNumber != content.SequenceNumber {
		return resp, fmt.Errorf("%w: got %d, want %d", ErrSeqMismatch, resp.SequenceNumber, content.SequenceNumber)
	}
	return resp, nil
}

// GetVersions reads the versions feature report with a buffer of length
// bytes; zero means room for one component.
func (c *Client) GetVersions(ctx context.Context, length int) (cfu.VersionDescriptor, error) {
	if length == 0 {
		length = cfu.VersionDescriptorSize(1)
	}
	raw, err := c.request(ctx, "get_feature", device.FeatureRequest{
		ReportID: c.ids.VersionsFeature,
		Length:   length,
	})
	if err != nil {
		return cfu.VersionDescriptor{}, err
	}

	var resp struct {
		device.ReportData
		device.AckData
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return cfu.VersionDescriptor{}, fmt.Errorf("decode feature response: %w", err)
	}
	if resp.Error != "" {
		return cfu.VersionDescriptor{}, reasonError(resp.AckData)
	}
	return cfu.DecodeVersionDescriptor(resp.Data)
}
