package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Login metrics
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kioskd_logins_total",
			Help: "Total login attempts by outcome",
		},
		[]string{"outcome"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kioskd_active_sessions",
			Help: "Number of live workstation sessions",
		},
	)

	// Time-budget metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kioskd_notifications_total",
			Help: "Countdown notifications surfaced to kiosks",
		},
		[]string{"role"},
	)

	ForcedLogoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kioskd_forced_logouts_total",
			Help: "Sessions observed past their time limit",
		},
	)

	// Quota metrics
	PagesConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kioskd_pages_consumed_total",
			Help: "Pages charged against daily quotas",
		},
		[]string{"kind"}, // "free" or "billed"
	)

	PrintJobsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kioskd_print_jobs_total",
			Help: "Print requests accepted",
		},
	)
)

func init() {
	prometheus.MustRegister(
		LoginsTotal,
		ActiveSessions,
		NotificationsTotal,
		ForcedLogoutsTotal,
		PagesConsumedTotal,
		PrintJobsTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-bound listener, used with systemd socket
// activation.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
