// Package memory provides the default non-persistent storage backend.
// Sessions never survive a restart by design; with this backend quota
// counters do not either.
package memory

import (
	"context"
	"sync"

	"github.com/lawdesk/kioskd/internal/storage"
)

// Store implements storage.Store with plain maps.
type Store struct {
	quota     *quotaStore
	printJobs *printJobStore
}

// Open creates a new in-memory storage instance
func Open() *Store {
	return &Store{
		quota: &quotaStore{
			days: make(map[string]*storage.QuotaDay),
		},
		printJobs: &printJobStore{
			jobs: make(map[string]storage.PrintJob),
		},
	}
}

// Close is a no-op for the in-memory backend
func (s *Store) Close() error {
	return nil
}

// Quota returns the QuotaStore implementation
func (s *Store) Quota() storage.QuotaStore {
	return s.quota
}

// PrintJobs returns the PrintJobStore implementation
func (s *Store) PrintJobs() storage.PrintJobStore {
	return s.printJobs
}

type quotaStore struct {
	mu   sync.RWMutex
	days map[string]*storage.QuotaDay // key: date + ":" + registration
}

func dayKey(date, registration string) string {
	return date + ":" + registration
}

func (s *quotaStore) GetDay(ctx context.Context, date, registration string) (*storage.QuotaDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day, ok := s.days[dayKey(date, registration)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copied := *day
	return &copied, nil
}

func (s *quotaStore) ListDays(ctx context.Context, date string) ([]storage.QuotaDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := make([]storage.QuotaDay, 0)
	for _, day := range s.days {
		if day.Date == date {
			days = append(days, *day)
		}
	}

	return days, nil
}

func (s *quotaStore) IncrementDay(ctx context.Context, date, registration string, pages int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey(date, registration)
	day, ok := s.days[key]
	if !ok {
		day = &storage.QuotaDay{
			Date:         date,
			Registration: registration,
		}
		s.days[key] = day
	}

	day.Pages += pages
	return nil
}

func (s *quotaStore) DeleteDaysBefore(ctx context.Context, cutoffDate string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, day := range s.days {
		if day.Date < cutoffDate {
			delete(s.days, key)
			deleted++
		}
	}

	return deleted, nil
}

type printJobStore struct {
	mu   sync.RWMutex
	jobs map[string]storage.PrintJob // key: job ID
}

func (s *printJobStore) Add(ctx context.Context, job storage.PrintJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job
	return nil
}

func (s *printJobStore) ListByDate(ctx context.Context, date string) ([]storage.PrintJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]storage.PrintJob, 0)
	for _, job := range s.jobs {
		if job.Date == date {
			jobs = append(jobs, job)
		}
	}

	return jobs, nil
}

func (s *printJobStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, job := range s.jobs {
		if job.Date < cutoffDate {
			delete(s.jobs, id)
			deleted++
		}
	}

	return deleted, nil
}
