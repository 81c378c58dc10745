package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	API struct {
		Listen          string `toml:"listen"`
		ValidateAuthURL string `toml:"validate_auth_url"`
	} `toml:"api"`
	Metrics struct {
		Listen string `toml:"listen"`
	} `toml:"metrics"`
	Analytics struct {
		URL   string `toml:"url"`
		Token string `toml:"token"`
	} `toml:"analytics"`
	Device struct {
		ComponentID    int `toml:"component_id"`
		VersionMajor   int `toml:"version_major"`
		VersionMinor   int `toml:"version_minor"`
		VersionVariant int `toml:"version_variant"`
		BufferPoolSize int `toml:"buffer_pool_size"`
		Reports        struct {
			VersionsFeature int `toml:"versions_feature"`
			OfferOutput     int `toml:"offer_output"`
			OfferInput      int `toml:"offer_input"`
			PayloadOutput   int `toml:"payload_output"`
			PayloadInput    int `toml:"payload_input"`
		} `toml:"reports"`
	} `toml:"device"`
}

// LoadFile applies the keys present in the TOML file at path on top of cfg.
func LoadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("api", "listen") {
		cfg.API.Listen = strings.TrimSpace(raw.API.Listen)
	}
	if meta.IsDefined("api", "validate_auth_url") {
		cfg.API.ValidateAuthURL = strings.TrimSpace(raw.API.ValidateAuthURL)
	}
	if meta.IsDefined("metrics", "listen") {
		cfg.Metrics.Listen = strings.TrimSpace(raw.Metrics.Listen)
	}
	if meta.IsDefined("analytics", "url") {
		cfg.Analytics.URL = strings.TrimSpace(raw.Analytics.URL)
	}
	if meta.IsDefined("analytics", "token") {
		cfg.Analytics.Token = strings.TrimSpace(raw.Analytics.Token)
	}

	dev := &cfg.Device
	byteFields := []struct {
		key   []string
		value int
		dst   *byte
	}{
		{[]string{"device", "component_id"}, raw.Device.ComponentID, &dev.ComponentID},
		{[]string{"device", "version_major"}, raw.Device.VersionMajor, &dev.Version.Major},
		{[]string{"device", "version_variant"}, raw.Device.VersionVariant, &dev.Version.Variant},
		{[]string{"device", "reports", "versions_feature"}, raw.Device.Reports.VersionsFeature, &dev.ReportIDs.VersionsFeature},
		{[]string{"device", "reports", "offer_output"}, raw.Device.Reports.OfferOutput, &dev.ReportIDs.OfferOutput},
		{[]string{"device", "reports", "offer_input"}, raw.Device.Reports.OfferInput, &dev.ReportIDs.OfferInput},
		{[]string{"device", "reports", "payload_output"}, raw.Device.Reports.PayloadOutput, &dev.ReportIDs.PayloadOutput},
		{[]string{"device", "reports", "payload_input"}, raw.Device.Reports.PayloadInput, &dev.ReportIDs.PayloadInput},
	}
	for _, f := range byteFields {
		if !meta.IsDefined(f.key...) {
			continue
		}
		if f.value < 0 || f.value > 0xFF {
			return fmt.Errorf("parse %s: %d does not fit in a byte", strings.Join(f.key, "."), f.value)
		}
		*f.dst = byte(f.value)
	}

	if meta.IsDefined("device", "version_minor") {
		if raw.Device.VersionMinor < 0 || raw.Device.VersionMinor > 0xFFFF {
			return fmt.Errorf("parse device.version_minor: %d out of range", raw.Device.VersionMinor)
		}
		dev.Version.Minor = uint16(raw.Device.VersionMinor)
	}
	if meta.IsDefined("device", "buffer_pool_size") {
		dev.BufferPoolSize = raw.Device.BufferPoolSize
	}

	return nil
}
