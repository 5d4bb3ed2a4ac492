package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Quota() QuotaStore
	PrintJobs() PrintJobStore
}

// QuotaStore manages per-day page consumption counters.
// Days are keyed by (date, registration) with dates in "2006-01-02" form.
type QuotaStore interface {
	GetDay(ctx context.Context, date, registration string) (*QuotaDay, error)
	ListDays(ctx context.Context, date string) ([]QuotaDay, error)
	IncrementDay(ctx context.Context, date, registration string, pages int64) error
	DeleteDaysBefore(ctx context.Context, cutoffDate string) (int, error)
}

// PrintJobStore records the billing breakdown of every print request.
type PrintJobStore interface {
	Add(ctx context.Context, job PrintJob) error
	ListByDate(ctx context.Context, date string) ([]PrintJob, error)
	DeleteBefore(ctx context.Context, cutoffDate string) (int, error)
}
