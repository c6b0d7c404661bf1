package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/toolforge/api/internal/model"
)

// RedisStore persists job records as JSON blobs under job:<id>. Records
// are retired, not deleted, when a job terminates: the retention TTL keeps
// them inspectable well past completion.
type RedisStore struct {
	redis     *redis.Client
	retention time.Duration
}

func NewRedisStore(redisClient *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &RedisStore{
		redis:     redisClient,
		retention: retention,
	}
}

func (s *RedisStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, s.retention).Err()
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// RedisLocker implements the per-document lock with SET NX and a token so
// only the holder releases it.
type RedisLocker struct {
	redis    *redis.Client
	ttl      time.Duration
	maxWait  time.Duration
	interval time.Duration
}

func NewRedisLocker(redisClient *redis.Client) *RedisLocker {
	return &RedisLocker{
		redis:    redisClient,
		ttl:      2 * time.Minute,
		maxWait:  10 * time.Second,
		interval: 100 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, jobID string) (func(), error) {
	key := fmt.Sprintf("joblock:%s", jobID)
	token := uuid.New().String()

	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			release := func() {
				// Release only if we still hold it
				current, err := l.redis.Get(context.Background(), key).Result()
				if err == nil && current == token {
					l.redis.Del(context.Background(), key)
				}
			}
			return release, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.interval):
		}
	}
}
