package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/beeper/libserv/pkg/flagenv"

	"github.com/beeper/cfu-relay/internal/device"
	"github.com/beeper/cfu-relay/internal/host"
)

var Commit string

// session is the device registration every subcommand runs under.
type session struct {
	url    string
	code   string
	secret string
	debug  bool
}

func main() {
	var s session

	rootCmd := &cobra.Command{
		Use:   "cfuctl",
		Short: "Drive a relay-hosted CFU device as the update host",
		Long: `cfuctl connects to a cfu-relay device websocket, registers a device
and sends it CFU offers, content blocks and version queries.

Every invocation registers for the length of the command. Pass --code and
--secret to reuse a registration.`,
		Version:       Commit,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if s.debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&s.url, "url", flagenv.StringEnvWithDefault("CFU_RELAY_URL", "ws://localhost:8000/api/v1/device"), "Relay device websocket URL")
	flags.StringVar(&s.code, "code", flagenv.StringEnvWithDefault("CFU_RELAY_CODE", ""), "Device code to register under")
	flags.StringVar(&s.secret, "secret", flagenv.StringEnvWithDefault("CFU_RELAY_DEVICE_SECRET", ""), "Secret for --code")
	flags.BoolVar(&s.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		registerCmd(&s),
		versionsCmd(&s),
		offerCmd(&s),
		contentCmd(&s),
		updateCmd(&s),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// connect dials the relay and registers the device.
func (s *session) connect(ctx context.Context, req device.RegisterCommandData) (*host.Client, device.RegisterCommandData, error) {
	c, err := host.Dial(ctx, s.url)
	if err != nil {
		return nil, device.RegisterCommandData{}, err
	}

	req.Code = s.code
	req.Secret = s.secret
	resp, err := c.Register(ctx, req)
	if err != nil {
		c.Close()
		return nil, device.RegisterCommandData{}, err
	}
	log.Debug().Str("code", resp.Code).Msg("Registered device")
	return c, resp, nil
}
