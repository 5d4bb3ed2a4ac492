// Package service composes the directory, session store and quota
// ledger behind the four kiosk operations: authenticate, status poll,
// print billing and logout.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/lawdesk/kioskd/internal/config"
	"github.com/lawdesk/kioskd/internal/directory"
	"github.com/lawdesk/kioskd/internal/metrics"
	"github.com/lawdesk/kioskd/internal/quota"
	"github.com/lawdesk/kioskd/internal/session"
	"github.com/lawdesk/kioskd/internal/storage"
	"github.com/rs/zerolog"
)

// LoginRequest is the credential tuple presented by a kiosk.
type LoginRequest struct {
	Registration string
	CPF          string
	ClientTag    string
}

// LoginResult summarizes the session issued at login.
type LoginResult struct {
	Profile      session.Profile
	StartedAt    time.Time
	LimitMinutes int
	Token        string
}

// Service is the composition root owning the session store and quota
// ledger lifetimes.
type Service struct {
	validator directory.Validator
	sessions  *session.Store
	ledger    *quota.Ledger
	printJobs storage.PrintJobStore
	roles     map[string]config.RoleLimits
	tokens    *TokenService
	clock     session.Clock
	logger    zerolog.Logger
}

// New creates the service.
func New(
	validator directory.Validator,
	sessions *session.Store,
	ledger *quota.Ledger,
	printJobs storage.PrintJobStore,
	roles map[string]config.RoleLimits,
	tokens *TokenService,
	clock session.Clock,
	logger zerolog.Logger,
) *Service {
	if clock == nil {
		clock = session.RealClock{}
	}
	return &Service{
		validator: validator,
		sessions:  sessions,
		ledger:    ledger,
		printJobs: printJobs,
		roles:     roles,
		tokens:    tokens,
		clock:     clock,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Authenticate validates credentials and starts a session.
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	var missing []string
	if req.Registration == "" {
		missing = append(missing, "registration")
	}
	if req.CPF == "" {
		missing = append(missing, "cpf")
	}
	if len(missing) > 0 {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return nil, &ValidationError{Fields: missing}
	}

	s.logger.Info().Str("registration", req.Registration).Msg("Login attempt")

	profile, err := s.validator.Lookup(ctx, directory.Credentials{
		Registration: req.Registration,
		CPF:          req.CPF,
	})
	if err != nil {
		if errors.Is(err, directory.ErrNotRegistered) {
			s.logger.Warn().Str("registration", req.Registration).Msg("Login rejected")
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("credential lookup failed: %w", err)
	}

	limits, ok := s.roles[profile.Role]
	if !ok {
		return nil, fmt.Errorf("no limits configured for role %q", profile.Role)
	}

	sess, err := s.sessions.Create(profile, limits.LimitMinutes, limits.Milestones)
	if err != nil {
		if errors.Is(err, session.ErrAlreadyActive) {
			metrics.LoginsTotal.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	token, err := s.tokens.Issue(profile, req.ClientTag)
	if err != nil {
		s.sessions.Remove(profile.Registration)
		return nil, err
	}

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))

	s.logger.Info().
		Str("registration", profile.Registration).
		Str("name", profile.Name).
		Str("role", profile.Role).
		Int("limit_minutes", limits.LimitMinutes).
		Msg("Login successful")

	return &LoginResult{
		Profile:      profile,
		StartedAt:    sess.StartedAt,
		LimitMinutes: limits.LimitMinutes,
		Token:        token,
	}, nil
}

// Status polls the time budget of the registration's session. Observing
// forced logout evicts the session; the terminal payload is still
// returned to the caller.
func (s *Service) Status(ctx context.Context, registration string) (session.Status, error) {
	var status session.Status
	var role string

	err := s.sessions.With(registration, func(sess *session.Session) error {
		status = session.Poll(sess, s.clock.Now())
		role = sess.Profile.Role
		return nil
	})
	if err != nil {
		return session.Status{}, err
	}

	if status.Notification != "" {
		metrics.NotificationsTotal.WithLabelValues(role).Inc()
		s.logger.Info().
			Str("registration", registration).
			Str("notification", status.Notification).
			Msg("Countdown notification surfaced")
	}

	if status.ForcedLogout {
		if s.sessions.RemoveExpired(registration) {
			metrics.ForcedLogoutsTotal.Inc()
			metrics.ActiveSessions.Set(float64(s.sessions.Len()))
			s.logger.Info().Str("registration", registration).Msg("Session evicted at time limit")
		}
	}

	return status, nil
}

// Print charges pages against the daily quota. It requires a live,
// unexpired session; an expired one is evicted and reported as absent.
func (s *Service) Print(ctx context.Context, registration string, pages int64) (quota.Receipt, error) {
	now := s.clock.Now()

	expired := false
	err := s.sessions.With(registration, func(sess *session.Session) error {
		expired = sess.Expired(now)
		return nil
	})
	if err != nil {
		return quota.Receipt{}, err
	}
	if expired {
		if s.sessions.RemoveExpired(registration) {
			metrics.ForcedLogoutsTotal.Inc()
			metrics.ActiveSessions.Set(float64(s.sessions.Len()))
		}
		return quota.Receipt{}, session.ErrNoSession
	}

	date := now.Format("2006-01-02")

	receipt, err := s.ledger.Consume(ctx, registration, date, pages)
	if err != nil {
		return quota.Receipt{}, err
	}

	if receipt.Requested > 0 {
		job := storage.PrintJob{
			ID:           generateJobID(),
			Registration: registration,
			Date:         date,
			RequestedAt:  now,
			Requested:    receipt.Requested,
			Free:         receipt.Free,
			Billed:       receipt.Billed,
			Cost:         receipt.CostString(),
		}
		if err := s.printJobs.Add(ctx, job); err != nil {
			// Billing is already committed; the audit record is best
			// effort.
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record print job")
		}

		metrics.PrintJobsTotal.Inc()
		metrics.PagesConsumedTotal.WithLabelValues("free").Add(float64(receipt.Free))
		metrics.PagesConsumedTotal.WithLabelValues("billed").Add(float64(receipt.Billed))
	}

	return receipt, nil
}

// Terminate ends the registration's session. It is idempotent and
// always succeeds.
func (s *Service) Terminate(ctx context.Context, registration string) {
	s.sessions.Remove(registration)
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	s.logger.Info().Str("registration", registration).Msg("Session terminated")
}

// ValidateToken verifies a session token issued by Authenticate.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	return s.tokens.Validate(token)
}

// generateJobID generates a unique print job ID.
func generateJobID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// This should never happen with a working system RNG
		panic(fmt.Sprintf("failed to generate random job ID: %v", err))
	}
	return hex.EncodeToString(bytes)
}
