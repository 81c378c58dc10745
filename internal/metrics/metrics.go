package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beeper/libserv/pkg/requestlog"
)

var (
	apiHTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfu_relay_api_http_requests_total",
	}, []string{"path", "method", "status"})
	apiHTTPRequestDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cfu_relay_api_http_request_duration_seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"path", "method"})

	DeviceWebsockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cfu_relay_device_websockets",
		Help: "Hosts with an open device websocket",
	})

	// Reports counts inbound output and feature reports by outcome.
	Reports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfu_relay_reports_total",
		Help: "Inbound reports handled, by report kind and result",
	}, []string{"report", "result"})

	// Responses counts outbound input reports by delivery outcome.
	Responses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfu_relay_responses_total",
		Help: "Outbound responses attempted, by report kind and result",
	}, []string{"report", "result"})

	Offers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfu_relay_offers_total",
		Help: "Offers received, by offer layout",
	}, []string{"kind"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cfu_relay_response_queue_depth",
		Help: "Responses queued and not yet drained, across all devices",
	})

	ContentSinkErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cfu_relay_content_sink_errors_total",
		Help: "Content blocks the content sink failed to store",
	})
)

func init() {
	DeviceWebsockets.Set(0)
	QueueDepth.Set(0)
}

type PrometheusMetricsHandler struct {
	log    zerolog.Logger
	server *http.Server
}

func NewPrometheusMetricsHandler(listen string) *PrometheusMetricsHandler {
	logger := log.With().
		Str("component", "metrics").
		Logger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &PrometheusMetricsHandler{
		log:    logger,
		server: &http.Server{Addr: listen, Handler: mux},
	}
}

func (mh *PrometheusMetricsHandler) Start() {
	mh.log.Info().Msgf("Starting metrics HTTP server at: %s", mh.server.Addr)
	go func() {
		err := mh.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			mh.log.Fatal().Err(err).Msg("Error in metrics listener")
		}
	}()
}

func (mh *PrometheusMetricsHandler) Stop() {
	mh.log.Info().Msg("Stopping metrics HTTP server")
	err := mh.server.Close()
	if err != nil {
		mh.log.Err(err).Msg("Error closing metrics listener")
	}
}

func TrackHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		duration := time.Since(start)

		status := http.StatusOK
		if crw, ok := w.(*requestlog.CountingResponseWriter); ok {
			status = crw.StatusCode
		}
		route := chi.RouteContext(r.Context()).RoutePattern()

		apiHTTPRequestDurations.
			With(prometheus.Labels{
				"path":   route,
				"method": r.Method,
			}).
			Observe(duration.Seconds())

		apiHTTPRequests.With(prometheus.Labels{
			"path":   route,
			"method": r.Method,
			"status": strconv.Itoa(status),
		}).Inc()
	})
}
