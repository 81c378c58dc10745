package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Events tracked for hosted devices.
const (
	EventImageStarted  = "cfu_image_started"
	EventImageComplete = "cfu_image_complete"
)

var ConfigURL = ""
var ConfigToken = ""
var client = http.Client{Timeout: 10 * time.Second}

var logger = log.With().Str("component", "analytics").Logger()

type event struct {
	UserID     string         `json:"userId"`
	Event      string         `json:"event"`
	Timestamp  time.Time      `json:"timestamp"`
	Properties map[string]any `json:"properties,omitempty"`
}

func send(url, token string, ev event) error {
	buf, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(token, "")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func IsEnabled() bool {
	return len(ConfigToken) > 0 && len(ConfigURL) > 0
}

// Track reports a device event in the background when analytics is
// configured.
func Track(deviceCode string, name string, properties map[string]any) {
	if !IsEnabled() {
		return
	}

	ev := event{
		UserID:     deviceCode,
		Event:      name,
		Timestamp:  time.Now().UTC(),
		Properties: properties,
	}
	url, token := ConfigURL, ConfigToken
	go func() {
		if err := send(url, token, ev); err != nil {
			logger.Warn().Err(err).Str("event", name).Str("device", deviceCode).Msg("Failed to track event")
			return
		}
		logger.Debug().Str("event", name).Str("device", deviceCode).Msg("Tracked event")
	}()
}
