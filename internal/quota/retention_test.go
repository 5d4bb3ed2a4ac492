package quota

import (
	"context"
	"testing"
	"time"

	"github.com/lawdesk/kioskd/internal/storage"
	"github.com/lawdesk/kioskd/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSweeper_RejectsBadTime(t *testing.T) {
	store := memory.Open()
	defer store.Close()

	_, err := NewSweeper(store, "3 in the morning", 90, zerolog.Nop())
	assert.Error(t, err)
}

func TestSweep_DeletesOnlyExpiredHistory(t *testing.T) {
	store := memory.Open()
	defer store.Close()

	ctx := context.Background()
	today := time.Now().Format("2006-01-02")

	require.NoError(t, store.Quota().IncrementDay(ctx, "2000-01-01", "MA123456", 7))
	require.NoError(t, store.Quota().IncrementDay(ctx, today, "MA123456", 3))
	require.NoError(t, store.PrintJobs().Add(ctx, storage.PrintJob{
		ID: "old", Registration: "MA123456", Date: "2000-01-01",
		RequestedAt: time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		Requested:   7, Free: 7, Cost: "0.00",
	}))
	require.NoError(t, store.PrintJobs().Add(ctx, storage.PrintJob{
		ID: "new", Registration: "MA123456", Date: today,
		RequestedAt: time.Now(),
		Requested:   3, Free: 3, Cost: "0.00",
	}))

	sweeper, err := NewSweeper(store, "03:00", 90, zerolog.Nop())
	require.NoError(t, err)

	sweeper.Sweep(ctx)

	_, err = store.Quota().GetDay(ctx, "2000-01-01", "MA123456")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	day, err := store.Quota().GetDay(ctx, today, "MA123456")
	require.NoError(t, err)
	assert.Equal(t, int64(3), day.Pages)

	jobs, err := store.PrintJobs().ListByDate(ctx, today)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	oldJobs, err := store.PrintJobs().ListByDate(ctx, "2000-01-01")
	require.NoError(t, err)
	assert.Empty(t, oldJobs)
}
