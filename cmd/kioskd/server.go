package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lawdesk/kioskd/internal/api"
	"github.com/lawdesk/kioskd/internal/config"
	"github.com/lawdesk/kioskd/internal/directory"
	"github.com/lawdesk/kioskd/internal/metrics"
	"github.com/lawdesk/kioskd/internal/quota"
	"github.com/lawdesk/kioskd/internal/service"
	"github.com/lawdesk/kioskd/internal/session"
	"github.com/lawdesk/kioskd/internal/storage"
	"github.com/lawdesk/kioskd/internal/storage/memory"
	"github.com/lawdesk/kioskd/internal/storage/redis"
	"github.com/lawdesk/kioskd/internal/systemd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the kioskd server",
	Long:  `Start the kioskd server with the kiosk API and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting kioskd")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Msg("Storage initialized")

	// Initialize credential validator
	members := make([]directory.Member, 0, len(cfg.Directory.Members))
	for _, m := range cfg.Directory.Members {
		members = append(members, directory.Member{
			Registration: m.Registration,
			CPF:          m.CPF,
			BirthDate:    m.BirthDate,
			Name:         m.Name,
			Role:         m.Role,
		})
	}

	var validator directory.Validator = directory.NewRoster(members, logger)
	validator = directory.NewCached(
		validator,
		cfg.Directory.CacheSize,
		parseDuration(cfg.Directory.CacheTTL, 10*time.Minute),
	)

	logger.Info().Int("members", len(members)).Msg("Credential validator initialized")

	// Initialize session store and quota ledger
	clock := session.RealClock{}
	sessions := session.NewStore(clock, logger)

	ledger := quota.NewLedger(store.Quota(), quota.Policy{
		FreePagesPerDay: cfg.Quota.FreePagesPerDay,
		PricePerPage:    cfg.Quota.Price(),
	}, logger)

	logger.Info().
		Int64("free_pages_per_day", cfg.Quota.FreePagesPerDay).
		Str("price_per_page", cfg.Quota.PricePerPage).
		Msg("Quota ledger initialized")

	// Initialize retention sweeper
	sweeper, err := quota.NewSweeper(store, cfg.Quota.SweepTime, cfg.Quota.RetentionDays, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize retention sweeper: %w", err)
	}

	sweeper.Start()
	logger.Info().Msg("Retention sweeper initialized")

	// Initialize service
	tokens := service.NewTokenService(
		cfg.Auth.TokenSecret,
		parseDuration(cfg.Auth.TokenTTL, service.DefaultTokenTTL),
		clock,
	)

	svc := service.New(
		validator,
		sessions,
		ledger,
		store.PrintJobs(),
		cfg.Roles,
		tokens,
		clock,
		logger,
	)

	// Initialize API server
	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort)
	apiServer := api.NewServer(api.Config{ListenAddr: apiAddr}, svc, store.Quota(), logger)

	if sdListeners.Activated && sdListeners.HTTP != nil {
		apiServer.SetListener(sdListeners.HTTP)
	}

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	logger.Info().Str("addr", apiAddr).Msg("API server started")

	// Initialize metrics server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info().Str("addr", metricsAddr).Msg("Metrics server started")

	// Log startup complete
	logger.Info().Msg("Kioskd startup complete")
	logger.Info().Msgf("Kiosk API: http://%s/api", apiAddr)
	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop servers
	sweeper.Stop()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("Kioskd stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "redis":
		return redis.Open(cfg.Redis)
	case "memory", "":
		return memory.Open(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be 'memory' or 'redis')", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
