package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/jobs-worker/internal/worker/domain"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock re-acquired by another worker is never removed.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Storage reads job records from the Redis job store. The worker never writes
// job records; it only holds short-lived processing locks.
type Storage struct {
	rdb     *goredis.Client
	lockTTL time.Duration
	logger  *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(rdb *goredis.Client, lockTTL time.Duration, logger *slog.Logger) *Storage {
	return &Storage{
		rdb:     rdb,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// GetRecord returns the record stored for jobID. A job without a record
// yields an empty JobRecord and no error.
func (s *Storage) GetRecord(ctx context.Context, jobID string) (domain.JobRecord, error) {
	key := domain.JobKey(jobID)

	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %q: %w", domain.ErrStoreUnavailable, key, err)
	}

	s.logger.Debug("Job record loaded",
		slog.String("job_id", jobID),
		slog.String("key", key),
		slog.Int("fields", len(fields)),
	)

	return domain.JobRecord(fields), nil
}

// AcquireLock takes the processing lock for jobID. It returns
// domain.ErrJobLocked when another worker holds it.
func (s *Storage) AcquireLock(ctx context.Context, jobID string) (domain.ReleaseFunc, error) {
	key := domain.LockKey(jobID)
	token := uuid.NewString()

	ok, err := s.rdb.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire lock %q: %w", domain.ErrStoreUnavailable, key, err)
	}

	if !ok {
		s.logger.Warn("Job lock held by another worker",
			slog.String("job_id", jobID),
		)
		return nil, fmt.Errorf("%w: %s", domain.ErrJobLocked, jobID)
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, s.rdb, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %q: %w", key, err)
		}
		return nil
	}

	return release, nil
}
