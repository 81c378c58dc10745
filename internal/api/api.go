package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/beeper/libserv/pkg/health"
	"github.com/beeper/libserv/pkg/requestlog"

	"github.com/beeper/cfu-relay/internal/config"
	"github.com/beeper/cfu-relay/internal/metrics"
)

type api struct {
	log    zerolog.Logger
	server *http.Server
	secret []byte
	device config.Device
}

func NewAPI(cfg config.Config) *api {
	logger := log.With().
		Str("component", "api").
		Str("relay_version", cfg.Version).
		Logger()

	api := api{
		log:    logger,
		secret: cfg.Secret,
		device: cfg.Device,
	}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(api.log))
	r.Use(hlog.RequestIDHandler("request_id", ""))
	r.Use(requestlog.AccessLogger(false))
	r.Use(metrics.TrackHTTPMetrics) // must be after requestlog.AccessLogger

	r.Get("/health", health.Health)

	r.Get("/api/v1/device", api.deviceWebsocket)
	r.Get("/api/v1/device/status", api.deviceStatus)
	r.Get("/api/v1/device/versions", api.deviceVersions)

	r.Group(func(r chi.Router) {
		if cfg.API.ValidateAuthURL != "" {
			r.Use(api.requireAuth(cfg.API.ValidateAuthURL))
		}
		r.Post("/api/v1/device/report/{reportID}", api.deviceOutputReport)
	})

	api.server = &http.Server{Addr: cfg.API.Listen, Handler: r}

	return &api
}

// Handler exposes the router, mainly for tests.
func (a *api) Handler() http.Handler {
	return a.server.Handler
}

func (a *api) Start() {
	go func() {
		a.log.Info().Msgf("Starting HTTP server at: %s", a.server.Addr)

		err := a.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatal().Err(err).Msg("Error while listening")
		} else {
			a.log.Info().Msg("Listener stopped")
		}
	}()
}

func (a *api) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.log.Info().Msg("API shutdown initiated...")
	err := a.server.Shutdown(ctx)
	if err != nil {
		a.log.Fatal().Err(err).Msg("error shutting down server")
	}

	a.log.Info().Msg("API shutdown complete")
}
