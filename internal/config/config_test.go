package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beeper/cfu-relay/internal/cfu"
	"github.com/beeper/cfu-relay/internal/engine"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfu-relay.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
[api]
listen = "127.0.0.1:9000"

[device]
component_id = 49
version_major = 2
version_minor = 300
version_variant = 7
buffer_pool_size = 4

[device.reports]
offer_output = 0x30
offer_input = 0x31
`)

	cfg := Default()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.API.Listen != "127.0.0.1:9000" {
		t.Fatalf("unexpected listen: %q", cfg.API.Listen)
	}
	if cfg.Metrics.Listen != ":5000" {
		t.Fatalf("metrics listen default lost: %q", cfg.Metrics.Listen)
	}
	if cfg.Device.ComponentID != 49 {
		t.Fatalf("unexpected component id: %d", cfg.Device.ComponentID)
	}
	if cfg.Device.Version != (cfu.Version{Major: 2, Minor: 300, Variant: 7}) {
		t.Fatalf("unexpected version: %s", cfg.Device.Version)
	}
	if cfg.Device.BufferPoolSize != 4 {
		t.Fatalf("unexpected pool size: %d", cfg.Device.BufferPoolSize)
	}
	want := engine.DefaultReportIDs()
	want.OfferOutput = 0x30
	want.OfferInput = 0x31
	if cfg.Device.ReportIDs != want {
		t.Fatalf("unexpected report ids: %+v", cfg.Device.ReportIDs)
	}
	if st := cfg.Device.State(); st.ComponentID != 49 || st.Version != cfg.Device.Version {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestLoadFileRejectsOutOfRange(t *testing.T) {
	path := writeConfig(t, "[device]\ncomponent_id = 256\n")
	cfg := Default()
	err := LoadFile(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "device.component_id") {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestLoadFileRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "[device]\ncomponent = 1\n")
	cfg := Default()
	if err := LoadFile(path, &cfg); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"), &cfg); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Secret = make([]byte, 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := cfg
	bad.Secret = []byte("short")
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected secret error")
	}

	bad = cfg
	bad.Device.BufferPoolSize = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected pool size error")
	}

	bad = cfg
	bad.Device.ReportIDs.PayloadOutput = bad.Device.ReportIDs.OfferOutput
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected report id error")
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg := Default()
	if err := LoadFile(filepath.Join("..", "..", "cfu-relay.example.toml"), &cfg); err != nil {
		t.Fatalf("load example: %v", err)
	}
	want := Default()
	if cfg.API != want.API || cfg.Metrics != want.Metrics || cfg.Analytics != want.Analytics || cfg.Device != want.Device {
		t.Fatalf("example config drifted from defaults: %+v", cfg)
	}
}
