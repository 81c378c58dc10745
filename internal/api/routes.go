package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/beeper/cfu-relay/internal/cfu"
	"github.com/beeper/cfu-relay/internal/device"
	"github.com/beeper/cfu-relay/internal/engine"
)

var upgrader = websocket.Upgrader{}

// Largest output report body accepted; larger bodies are refused, not cut.
const maxReportBody = 4096

type componentResp struct {
	ComponentID byte   `json:"component_id"`
	Version     string `json:"version"`
	Raw         uint32 `json:"raw"`
}

type versionsResp struct {
	ReportID         byte            `json:"report_id"`
	ComponentCount   byte            `json:"component_count"`
	ProtocolRevision byte            `json:"protocol_revision"`
	Components       []componentResp `json:"components"`
	Report           string          `json:"report"`
}

type errorResp struct {
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidLength):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrUnknownReport), errors.Is(err, device.ErrClosed):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrResourceExhausted):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResp{Reason: engine.Reason(err), Error: err.Error()})
}

// registeredDevice resolves the device named by the bearer code.
func (a *api) registeredDevice(w http.ResponseWriter, r *http.Request) (*device.Device, *engine.Engine, zerolog.Logger, bool) {
	code, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return nil, nil, a.log, false
	}

	log := a.log.With().Str("code", code).Logger()

	dev, exists := device.GetDevice(code)
	if !exists {
		log.Warn().Msg("No device found for code")
		w.WriteHeader(http.StatusNotFound)
		return nil, nil, log, false
	}
	eng := dev.Engine()
	if eng == nil {
		log.Warn().Msg("Device not ready")
		w.WriteHeader(http.StatusNotFound)
		return nil, nil, log, false
	}
	return dev, eng, log, true
}

func (a *api) deviceStatus(w http.ResponseWriter, r *http.Request) {
	dev, _, _, ok := a.registeredDevice(w, r)
	if !ok {
		return
	}
	status, ok := dev.Status()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *api) deviceVersions(w http.ResponseWriter, r *http.Request) {
	_, eng, log, ok := a.registeredDevice(w, r)
	if !ok {
		return
	}

	length := cfu.VersionDescriptorSize(1)
	if raw := r.URL.Query().Get("length"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		length = n
	}

	reportID := eng.ReportIDs().VersionsFeature
	d, err := eng.HandleFeatureReport(reportID, length)
	if err != nil {
		log.Debug().Err(err).Msg("Versions query rejected")
		writeError(w, err)
		return
	}

	resp := versionsResp{
		ReportID:         reportID,
		ComponentCount:   d.ComponentCount,
		ProtocolRevision: d.ProtocolRevision,
		Report:           hex.EncodeToString(cfu.EncodeVersionDescriptor(d)),
	}
	for _, c := range d.Components {
		resp.Components = append(resp.Components, componentResp{
			ComponentID: c.ComponentID,
			Version:     c.Version.String(),
			Raw:         c.Version.Uint32(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) deviceOutputReport(w http.ResponseWriter, r *http.Request) {
	dev, _, log, ok := a.registeredDevice(w, r)
	if !ok {
		return
	}

	reportID, err := strconv.ParseUint(chi.URLParam(r, "reportID"), 0, 8)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBody+1))
	if err != nil {
		log.Err(err).Msg("Failed to read output report")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(body) > maxReportBody {
		log.Warn().Int("limit", maxReportBody).Msg("Output report too large")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	if err := dev.HandleOutputReport(byte(reportID), body, nil); err != nil {
		log.Debug().Err(err).Msg("Output report rejected")
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) deviceWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Err(err).Msg("Failed to upgrade websocket connection")
		return
	}
	defer conn.Close()

	dev := device.NewDevice(conn, a.secret, a.device)
	dev.WebsocketLoop()

	a.log.Info().Msg("Websocket connection closed")
}
