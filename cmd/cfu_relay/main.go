package main

import (
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beeper/libserv/pkg/flagenv"

	"github.com/beeper/cfu-relay/internal/analytics"
	"github.com/beeper/cfu-relay/internal/api"
	"github.com/beeper/cfu-relay/internal/config"
	"github.com/beeper/cfu-relay/internal/device"
	"github.com/beeper/cfu-relay/internal/metrics"
)

var Commit,
	BuildTime string

func main() {
	prettyLogs := flag.Bool("prettyLogs", false, "Display pretty logs")
	debug := flag.Bool("debug", false, "Enable debug logging")

	configPath := flag.String(
		"config",
		flagenv.StringEnvWithDefault("CFU_RELAY_CONFIG", ""),
		"Path to a TOML config file",
	)
	listenAddr := flag.String(
		"listen",
		flagenv.StringEnvWithDefault("CFU_RELAY_LISTEN", ""),
		"Listen address (default :8000)",
	)
	secret := flag.String(
		"secret",
		flagenv.StringEnvWithDefault("CFU_RELAY_SECRET", ""),
		"Secret (32 bytes encoded as base64)",
	)
	metricsListenAddr := flag.String(
		"metricsListen",
		flagenv.StringEnvWithDefault("CFU_RELAY_METRICS_LISTEN", ""),
		"Metrics listen address (default :5000)",
	)

	flag.Parse()

	if *prettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Debug().Msg("Debug logging enabled")
	}

	cfg := config.Default()
	if *configPath != "" {
		if err := config.LoadFile(*configPath, &cfg); err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("Invalid config file")
		}
	}
	if *listenAddr != "" {
		cfg.API.Listen = *listenAddr
	}
	if *metricsListenAddr != "" {
		cfg.Metrics.Listen = *metricsListenAddr
	}

	var err error
	cfg.Secret, err = base64.StdEncoding.DecodeString(*secret)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid secret")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	cfg.Version = Commit

	analytics.ConfigURL = cfg.Analytics.URL
	analytics.ConfigToken = cfg.Analytics.Token

	log.Info().
		Str("commit", Commit).
		Str("build_time", BuildTime).
		Uint8("component_id", cfg.Device.ComponentID).
		Stringer("version", cfg.Device.Version).
		Bool("analytics", analytics.IsEnabled()).
		Msg("cfu-relay starting")

	metricsSrv := metrics.NewPrometheusMetricsHandler(cfg.Metrics.Listen)
	metricsSrv.Start()

	srv := api.NewAPI(cfg)
	srv.Start()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-c

	log.Info().Strs("devices", device.Devices()).Msg("Going to stop...")

	srv.Stop()
	metricsSrv.Stop()
	os.Exit(0)
}
