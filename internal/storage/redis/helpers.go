package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lawdesk/kioskd/internal/storage"
)

// parseQuotaDay converts a Redis hash to QuotaDay
func parseQuotaDay(data map[string]string) (*storage.QuotaDay, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	pages, err := strconv.ParseInt(data["pages"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pages: %w", err)
	}

	return &storage.QuotaDay{
		Date:         data["date"],
		Registration: data["registration"],
		Pages:        pages,
	}, nil
}

// parsePrintJob converts a Redis hash to PrintJob
func parsePrintJob(data map[string]string) (*storage.PrintJob, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	requestedAt, err := time.Parse(time.RFC3339Nano, data["requested_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse requested_at: %w", err)
	}

	requested, err := strconv.ParseInt(data["requested"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse requested: %w", err)
	}

	free, err := strconv.ParseInt(data["free"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse free: %w", err)
	}

	billed, err := strconv.ParseInt(data["billed"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse billed: %w", err)
	}

	return &storage.PrintJob{
		ID:           data["id"],
		Registration: data["registration"],
		Date:         data["date"],
		RequestedAt:  requestedAt,
		Requested:    requested,
		Free:         free,
		Billed:       billed,
		Cost:         data["cost"],
	}, nil
}
