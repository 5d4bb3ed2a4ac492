package redis

import (
	"context"
	"fmt"

	"github.com/lawdesk/kioskd/internal/storage"
	"github.com/redis/go-redis/v9"
)

type quotaStore struct {
	client *redis.Client
}

// GetDay retrieves the page counter for a specific date and registration
func (s *quotaStore) GetDay(ctx context.Context, date, registration string) (*storage.QuotaDay, error) {
	dayKey := fmt.Sprintf("kioskd:quota:day:%s:%s", date, registration)

	data, err := s.client.HGetAll(ctx, dayKey).Result()
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	return parseQuotaDay(data)
}

// ListDays returns all page counters for a specific date
func (s *quotaStore) ListDays(ctx context.Context, date string) ([]storage.QuotaDay, error) {
	indexKey := fmt.Sprintf("kioskd:quota:index:%s", date)

	registrations, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}

	if len(registrations) == 0 {
		return []storage.QuotaDay{}, nil
	}

	// Use pipeline for batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(registrations))

	for i, reg := range registrations {
		dayKey := fmt.Sprintf("kioskd:quota:day:%s:%s", date, reg)
		cmds[i] = pipe.HGetAll(ctx, dayKey)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	days := make([]storage.QuotaDay, 0, len(registrations))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		day, err := parseQuotaDay(data)
		if err == nil {
			days = append(days, *day)
		}
	}

	return days, nil
}

// IncrementDay atomically increments (or creates) a daily page counter
func (s *quotaStore) IncrementDay(ctx context.Context, date, registration string, pages int64) error {
	script := redis.NewScript(incrementQuotaDayScript)

	dayKey := fmt.Sprintf("kioskd:quota:day:%s:%s", date, registration)
	indexKey := fmt.Sprintf("kioskd:quota:index:%s", date)

	keys := []string{dayKey, indexKey}
	args := []interface{}{date, registration, pages}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// DeleteDaysBefore deletes page counters dated before the cutoff.
// Keys carry a 90-day TTL, so this mostly matters when the retention
// window is configured shorter than that.
func (s *quotaStore) DeleteDaysBefore(ctx context.Context, cutoffDate string) (int, error) {
	var cursor uint64
	var deletedCount int

	for {
		var keys []string
		var err error
		keys, cursor, err = s.client.Scan(ctx, cursor, "kioskd:quota:day:*", 100).Result()
		if err != nil {
			return deletedCount, err
		}

		toDelete := make([]string, 0)
		for _, key := range keys {
			data, err := s.client.HGetAll(ctx, key).Result()
			if err != nil || len(data) == 0 {
				continue
			}
			if data["date"] < cutoffDate {
				toDelete = append(toDelete, key)
				indexKey := fmt.Sprintf("kioskd:quota:index:%s", data["date"])
				s.client.SRem(ctx, indexKey, data["registration"])
			}
		}

		if len(toDelete) > 0 {
			deleted, err := s.client.Del(ctx, toDelete...).Result()
			if err != nil {
				return deletedCount, err
			}
			deletedCount += int(deleted)
		}

		if cursor == 0 {
			break
		}
	}

	return deletedCount, nil
}
