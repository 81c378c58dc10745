package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beeper/cfu-relay/internal/config"
	"github.com/beeper/cfu-relay/internal/engine"
	"github.com/beeper/cfu-relay/internal/metrics"
)

const writeTimeout = 10 * time.Second

var (
	// ErrClosed is returned for reports arriving after the device stopped
	// ingesting.
	ErrClosed = errors.New("device: closed")

	errNotRegistered = errors.New("device not registered")
)

// Device is one virtual CFU device, driven by the host on the other end of
// its websocket.
type Device struct {
	log      zerolog.Logger
	ws       *websocket.Conn
	writeMu  sync.Mutex
	defaults config.Device

	engineMu sync.RWMutex
	engine   *engine.Engine
	code     string
	images   *imageTracker

	// Held for reading around every ingestion; closed is set under the
	// write lock before the transmitter is stopped.
	ingestMu sync.RWMutex
	closed   bool

	globalSecret []byte
}

func NewDevice(ws *websocket.Conn, secret []byte, defaults config.Device) *Device {
	logger := log.With().
		Str("component", "device").
		Logger()

	d := &Device{
		log:          logger,
		ws:           ws,
		defaults:     defaults,
		globalSecret: secret,
	}
	d.images = newImageTracker(d)
	return d
}

// Engine returns the device's protocol engine, or nil before registration.
func (d *Device) Engine() *engine.Engine {
	d.engineMu.RLock()
	defer d.engineMu.RUnlock()
	return d.engine
}

func (d *Device) Code() string {
	d.engineMu.RLock()
	defer d.engineMu.RUnlock()
	return d.code
}

// Status is a snapshot of a registered device.
type Status struct {
	Code        string `json:"code"`
	ComponentID byte   `json:"component_id"`
	Version     string `json:"version"`
	Pending     int    `json:"pending_responses"`
	ImageBlocks int    `json:"image_blocks"`
	ImageBytes  int    `json:"image_bytes"`
}

// Status returns the device snapshot, or false before registration.
func (d *Device) Status() (Status, bool) {
	eng := d.Engine()
	if eng == nil {
		return Status{}, false
	}
	blocks, bytes := d.images.progress()
	state := eng.State()
	return Status{
		Code:        d.Code(),
		ComponentID: state.ComponentID,
		Version:     state.Version.String(),
		Pending:     eng.Pending(),
		ImageBlocks: blocks,
		ImageBytes:  bytes,
	}, true
}

// Deliver sends an input report to the host. It is the engine's outbound
// channel.
func (d *Device) Deliver(_ context.Context, reportID byte, payload []byte) error {
	return d.write(RawCommand[ReportData]{
		Command: "input_report",
		Data:    ReportData{ReportID: reportID, Data: payload},
	})
}

func (d *Device) write(v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}

	// ws is single writer
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if err := d.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return d.ws.WriteMessage(websocket.TextMessage, buf)
}

func (d *Device) respond(reqID int, data any) {
	if err := d.write(RawCommand[any]{Command: "response", ReqID: reqID, Data: data}); err != nil {
		d.log.Err(err).Int("req_id", reqID).Msg("Failed to send response")
	}
}

func (d *Device) respondError(reqID int, err error) {
	d.respond(reqID, AckData{Reason: engine.Reason(err), Error: err.Error()})
}

func (d *Device) WebsocketLoop() {
	metrics.DeviceWebsockets.Inc()
	defer metrics.DeviceWebsockets.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	var transmitter sync.WaitGroup

	registerCode := ""

Loop:
	for {
		_, message, err := d.ws.ReadMessage()
		if err != nil {
			d.log.Err(err).Msg("Websocket read error")
			break
		}

		var rawCommand RawCommand[json.RawMessage]
		if err := json.Unmarshal(message, &rawCommand); err != nil {
			d.log.Err(err).Msg("Failed to decode websocket message")
			break
		}

		switch rawCommand.Command {
		case "register":
			if registerCode != "" {
				d.respondError(rawCommand.ReqID, fmt.Errorf("already registered"))
				continue
			}
			var request RegisterCommandData
			if err := json.Unmarshal(rawCommand.Data, &request); err != nil {
				d.log.Err(err).Msg("Failed to decode register request")
				break Loop
			}
			response, err := RegisterDevice(request, d)
			if err != nil {
				d.log.Err(err).Msg("Failed to register device")
				d.respond(rawCommand.ReqID, AckData{Error: "invalid token"})
				break Loop
			}
			registerCode = response.Code
			d.log = d.log.With().Str("code", registerCode).Logger()

			eng, err := d.newEngine(request)
			if err != nil {
				d.log.Err(err).Msg("Failed to create device engine")
				d.respondError(rawCommand.ReqID, err)
				break Loop
			}

			d.engineMu.Lock()
			d.engine = eng
			d.code = registerCode
			d.engineMu.Unlock()

			// Send back register response before the engine can transmit
			d.respond(rawCommand.ReqID, response)

			transmitter.Add(1)
			go func() {
				defer transmitter.Done()
				eng.Run(ctx)
			}()
			d.log.Debug().Msg("Registered device")
		case "ping":
			if err := d.write(RawCommand[struct{}]{Command: "pong", ReqID: rawCommand.ReqID}); err != nil {
				d.log.Err(err).Msg("Failed to send ping response")
				break Loop
			}
		case "output_report":
			d.handleOutputReport(rawCommand)
		case "get_feature":
			d.handleGetFeature(rawCommand)
		default:
			d.log.Warn().Str("command", rawCommand.Command).Msg("Received unknown command")
		}
	}

	// Stop ingestion from both the socket and the HTTP API before the
	// transmitter goes away.
	d.log.Info().Msg("Exit device websocket loop")
	if registerCode != "" {
		UnregisterDevice(registerCode, d)
		d.log.Debug().Msg("Unregistered device")
	}
	d.stopIngestion()

	cancel()
	transmitter.Wait()
}

func (d *Device) newEngine(req RegisterCommandData) (*engine.Engine, error) {
	state := d.defaults.State()
	if req.ComponentID != nil {
		state.ComponentID = *req.ComponentID
	}
	if req.Version != nil {
		state.Version.Major = req.Version.Major
		state.Version.Minor = req.Version.Minor
		state.Version.Variant = req.Version.Variant
	}

	poolSize := d.defaults.BufferPoolSize
	if poolSize <= 0 {
		poolSize = engine.DefaultPoolSize
	}

	return engine.New(state, d,
		engine.WithLogger(d.log.With().Str("component", "engine").Logger()),
		engine.WithReportIDs(d.defaults.ReportIDs),
		engine.WithBufferPool(engine.NewBufferPool(poolSize)),
		engine.WithContentSink(d.images),
	)
}

// HandleOutputReport hands an output report to the device's engine. Once
// the device has stopped ingesting it fails with ErrClosed, so no report
// is queued for a transmitter that is gone.
func (d *Device) HandleOutputReport(reportID byte, data []byte, ack engine.Ack) error {
	d.ingestMu.RLock()
	defer d.ingestMu.RUnlock()

	var err error
	eng := d.Engine()
	switch {
	case d.closed:
		err = ErrClosed
	case eng == nil:
		err = errNotRegistered
	default:
		return eng.HandleOutputReport(reportID, data, ack)
	}
	if ack != nil {
		ack(err)
	}
	return err
}

func (d *Device) stopIngestion() {
	d.ingestMu.Lock()
	d.closed = true
	d.ingestMu.Unlock()
}

func (d *Device) handleOutputReport(cmd RawCommand[json.RawMessage]) {
	var report ReportData
	if err := json.Unmarshal(cmd.Data, &report); err != nil {
		d.respondError(cmd.ReqID, fmt.Errorf("decode output report: %w", err))
		return
	}

	d.HandleOutputReport(report.ReportID, report.Data, func(err error) {
		if err != nil {
			d.respondError(cmd.ReqID, err)
			return
		}
		d.respond(cmd.ReqID, AckData{OK: true})
	})
}

func (d *Device) handleGetFeature(cmd RawCommand[json.RawMessage]) {
	eng := d.Engine()
	if eng == nil {
		d.respondError(cmd.ReqID, errNotRegistered)
		return
	}

	var req FeatureRequest
	if err := json.Unmarshal(cmd.Data, &req); err != nil {
		d.respondError(cmd.ReqID, fmt.Errorf("decode feature request: %w", err))
		return
	}

	buf, err := eng.VersionReport(req.ReportID, req.Length)
	if err != nil {
		d.respondError(cmd.ReqID, err)
		return
	}
	d.respond(cmd.ReqID, ReportData{ReportID: req.ReportID, Data: buf})
}
