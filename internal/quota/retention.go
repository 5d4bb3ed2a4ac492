package quota

import (
	"context"
	"time"

	"github.com/lawdesk/kioskd/internal/storage"
	"github.com/rs/zerolog"
)

// Sweeper deletes quota days and print jobs past the retention window.
// Day counters reset implicitly because the ledger keys them by current
// date; the sweeper only reclaims history.
type Sweeper struct {
	store         storage.Store
	sweepTime     time.Time // only hour and minute are used
	retentionDays int
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewSweeper creates a retention sweeper firing daily at sweepTime
// (HH:MM format).
func NewSweeper(store storage.Store, sweepTime string, retentionDays int, logger zerolog.Logger) (*Sweeper, error) {
	parsedTime, err := time.Parse("15:04", sweepTime)
	if err != nil {
		return nil, err
	}

	return &Sweeper{
		store:         store,
		sweepTime:     parsedTime,
		retentionDays: retentionDays,
		logger:        logger.With().Str("component", "retention-sweeper").Logger(),
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the sweep loop.
func (s *Sweeper) Start() {
	go s.run()
	s.logger.Info().
		Str("sweep_time", s.sweepTime.Format("15:04")).
		Int("retention_days", s.retentionDays).
		Msg("Retention sweeper started")
}

// Stop stops the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopChan)
	s.logger.Info().Msg("Retention sweeper stopped")
}

func (s *Sweeper) run() {
	for {
		nextSweep := s.calculateNextSweep()
		waitDuration := time.Until(nextSweep)

		s.logger.Info().
			Time("next_sweep", nextSweep).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next retention sweep")

		select {
		case <-time.After(waitDuration):
			s.Sweep(context.Background())
		case <-s.stopChan:
			return
		}
	}
}

func (s *Sweeper) calculateNextSweep() time.Time {
	now := time.Now()

	todaySweep := time.Date(
		now.Year(), now.Month(), now.Day(),
		s.sweepTime.Hour(), s.sweepTime.Minute(), 0, 0,
		now.Location(),
	)

	if now.After(todaySweep) {
		return todaySweep.AddDate(0, 0, 1)
	}

	return todaySweep
}

// Sweep deletes everything older than the retention window.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoffDate := time.Now().AddDate(0, 0, -s.retentionDays).Format("2006-01-02")

	daysDeleted, err := s.store.Quota().DeleteDaysBefore(ctx, cutoffDate)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to clean up old quota days")
		return
	}

	jobsDeleted, err := s.store.PrintJobs().DeleteBefore(ctx, cutoffDate)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to clean up old print jobs")
		return
	}

	s.logger.Info().
		Int("days_deleted", daysDeleted).
		Int("jobs_deleted", jobsDeleted).
		Str("cutoff_date", cutoffDate).
		Msg("Retention sweep complete")
}
