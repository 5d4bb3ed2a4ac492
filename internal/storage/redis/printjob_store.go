package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/lawdesk/kioskd/internal/storage"
	"github.com/redis/go-redis/v9"
)

type printJobStore struct {
	client *redis.Client
}

// Add stores a print job and indexes it by date
func (s *printJobStore) Add(ctx context.Context, job storage.PrintJob) error {
	script := redis.NewScript(addPrintJobScript)

	jobKey := fmt.Sprintf("kioskd:printjob:%s", job.ID)
	indexKey := fmt.Sprintf("kioskd:printjobs:%s", job.Date)

	keys := []string{jobKey, indexKey}
	args := []interface{}{
		job.ID,
		job.Registration,
		job.Date,
		job.RequestedAt.Format(time.RFC3339Nano),
		job.Requested,
		job.Free,
		job.Billed,
		job.Cost,
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// ListByDate returns all print jobs recorded on a specific date
func (s *printJobStore) ListByDate(ctx context.Context, date string) ([]storage.PrintJob, error) {
	indexKey := fmt.Sprintf("kioskd:printjobs:%s", date)

	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.PrintJob{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))

	for i, id := range ids {
		jobKey := fmt.Sprintf("kioskd:printjob:%s", id)
		cmds[i] = pipe.HGetAll(ctx, jobKey)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	jobs := make([]storage.PrintJob, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		job, err := parsePrintJob(data)
		if err == nil {
			jobs = append(jobs, *job)
		}
	}

	return jobs, nil
}

// DeleteBefore deletes print jobs dated before the cutoff
func (s *printJobStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	var cursor uint64
	var deletedCount int

	for {
		var keys []string
		var err error
		keys, cursor, err = s.client.Scan(ctx, cursor, "kioskd:printjob:*", 100).Result()
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
				indexKey := fmt.Sprintf("kioskd:printjobs:%s", data["date"])
				s.client.SRem(ctx, indexKey, data["id"])
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
