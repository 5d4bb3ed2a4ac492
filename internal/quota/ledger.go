package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lawdesk/kioskd/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrInvalidRequest is returned for a negative page count.
var ErrInvalidRequest = errors.New("quota: invalid page count")

// Policy is the billing configuration, immutable during a run.
type Policy struct {
	FreePagesPerDay int64
	PricePerPage    decimal.Decimal
}

// Receipt is the billing breakdown of one consumption request.
// Free + Billed always equals the requested amount.
type Receipt struct {
	Requested int64
	Free      int64
	Billed    int64
	Cost      decimal.Decimal
}

// CostString renders the cost with two decimal places.
func (r Receipt) CostString() string {
	return r.Cost.StringFixed(2)
}

// Ledger meters page consumption against the daily free quota.
// Counters live in storage; a per-registration mutex serializes the
// read-split-increment sequence so concurrent requests for the same
// user cannot double-spend the free allowance.
type Ledger struct {
	store  storage.QuotaStore
	policy Policy
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger creates a ledger over the given counter store.
func NewLedger(store storage.QuotaStore, policy Policy, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		policy: policy,
		logger: logger.With().Str("component", "quota-ledger").Logger(),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Policy returns the ledger's billing configuration.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// Consume charges requested pages against the day's counter for
// registration and returns the free/billable split. Zero pages is a
// valid no-op; negative pages fail with ErrInvalidRequest and change
// nothing.
func (l *Ledger) Consume(ctx context.Context, registration, date string, requested int64) (Receipt, error) {
	if requested < 0 {
		return Receipt{}, fmt.Errorf("%w: %d pages", ErrInvalidRequest, requested)
	}

	if requested == 0 {
		return Receipt{Cost: decimal.Zero}, nil
	}

	lock := l.userLock(registration)
	lock.Lock()
	defer lock.Unlock()

	var consumed int64
	day, err := l.store.GetDay(ctx, date, registration)
	switch {
	case err == nil:
		consumed = day.Pages
	case errors.Is(err, storage.ErrNotFound):
		// First consumption of the day; the counter is created lazily
		// by IncrementDay below.
	default:
		return Receipt{}, fmt.Errorf("failed to read daily counter: %w", err)
	}

	freeRemaining := l.policy.FreePagesPerDay - consumed
	if freeRemaining < 0 {
		freeRemaining = 0
	}

	free := requested
	if free > freeRemaining {
		free = freeRemaining
	}
	billed := requested - free

	cost := decimal.NewFromInt(billed).Mul(l.policy.PricePerPage).Round(2)

	if err := l.store.IncrementDay(ctx, date, registration, requested); err != nil {
		return Receipt{}, fmt.Errorf("failed to update daily counter: %w", err)
	}

	receipt := Receipt{
		Requested: requested,
		Free:      free,
		Billed:    billed,
		Cost:      cost,
	}

	l.logger.Debug().
		Str("registration", registration).
		Str("date", date).
		Int64("requested", requested).
		Int64("free", free).
		Int64("billed", billed).
		Str("cost", receipt.CostString()).
		Msg("Pages charged against daily quota")

	return receipt, nil
}

// userLock returns the mutex guarding one registration's counters.
func (l *Ledger) userLock(registration string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[registration]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[registration] = lock
	}
	return lock
}
