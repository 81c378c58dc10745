package config

import (
	"fmt"

	"github.com/beeper/cfu-relay/internal/cfu"
	"github.com/beeper/cfu-relay/internal/engine"
)

type Config struct {
	Version string
	Secret  []byte
	API     struct {
		Listen          string
		ValidateAuthURL string
	}
	Metrics struct {
		Listen string
	}
	Analytics struct {
		URL   string
		Token string
	}
	Device Device
}

// Device is what every hosted CFU device starts with unless the host
// overrides it at registration.
type Device struct {
	ComponentID    byte
	Version        cfu.Version
	BufferPoolSize int
	ReportIDs      engine.ReportIDs
}

// State is the engine identity described by the device config.
func (d Device) State() engine.State {
	return engine.State{ComponentID: d.ComponentID, Version: d.Version}
}

func Default() Config {
	cfg := Config{}
	cfg.API.Listen = ":8000"
	cfg.Metrics.Listen = ":5000"
	cfg.Device = Device{
		ComponentID:    0x20,
		Version:        cfu.Version{Major: 1, Minor: 0, Variant: 0},
		BufferPoolSize: engine.DefaultPoolSize,
		ReportIDs:      engine.DefaultReportIDs(),
	}
	return cfg
}

func (c Config) Validate() error {
	if len(c.Secret) != 32 {
		return fmt.Errorf("secret must be 32 bytes, got %d", len(c.Secret))
	}
	if c.Device.BufferPoolSize <= 0 {
		return fmt.Errorf("device buffer_pool_size must be positive, got %d", c.Device.BufferPoolSize)
	}
	if err := c.Device.ReportIDs.Validate(); err != nil {
		return fmt.Errorf("device reports: %w", err)
	}
	return nil
}
