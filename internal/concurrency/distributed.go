package concurrency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedSemaphore is the cross-process counterpart of Semaphore
// (§4.4's concurrency caps must hold across every `worker` process, not
// just within one), grounded on the Redis client-construction idiom of
// stream_gateway's session.Manager. It uses a sorted set keyed by
// holder ID with a score of expiry time: ZADD acquires, ZREM releases,
// and a ZREMRANGEBYSCORE sweep on every call evicts holders whose
// process died without releasing.
type DistributedSemaphore struct {
	client   *redis.Client
	key      string
	capacity int
	lease    time.Duration
}

// NewDistributedSemaphore dials Redis the way session.Manager does:
// ParseURL + Ping before returning, so a bad REDIS_ADDR fails at
// startup rather than on first Acquire.
func NewDistributedSemaphore(ctx context.Context, redisURL, key string, capacity int, lease time.Duration) (*DistributedSemaphore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &DistributedSemaphore{client: client, key: key, capacity: capacity, lease: lease}, nil
}

// TryAcquire attempts to claim one of the capacity slots under holderID,
// evicting expired leases first. Returns false if the semaphore is full.
func (s *DistributedSemaphore) TryAcquire(ctx context.Context, holderID string) (bool, error) {
	now := time.Now()

	if err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", fmt.Sprintf("%d", now.UnixNano())).Err(); err != nil {
		return false, fmt.Errorf("evict expired holders: %w", err)
	}

	count, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return false, fmt.Errorf("count holders: %w", err)
	}
	if int(count) >= s.capacity {
		return false, nil
	}

	expiry := now.Add(s.lease).UnixNano()
	added, err := s.client.ZAdd(ctx, s.key, redis.Z{Score: float64(expiry), Member: holderID}).Result()
	if err != nil {
		return false, fmt.Errorf("claim slot: %w", err)
	}
	return added == 1, nil
}

// Renew extends a held slot's lease, called periodically by a task
// whose external call outlives the default lease (grounded on the same
// need SQSBroker.ExtendVisibility addresses for the queue side).
func (s *DistributedSemaphore) Renew(ctx context.Context, holderID string) error {
	expiry := time.Now().Add(s.lease).UnixNano()
	if err := s.client.ZAdd(ctx, s.key, redis.Z{Score: float64(expiry), Member: holderID}).Err(); err != nil {
		return fmt.Errorf("renew slot: %w", err)
	}
	return nil
}

func (s *DistributedSemaphore) Release(ctx context.Context, holderID string) error {
	if err := s.client.ZRem(ctx, s.key, holderID).Err(); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (s *DistributedSemaphore) Available(ctx context.Context) (int, error) {
	now := time.Now()
	if err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", fmt.Sprintf("%d", now.UnixNano())).Err(); err != nil {
		return 0, fmt.Errorf("evict expired holders: %w", err)
	}
	count, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count holders: %w", err)
	}
	return s.capacity - int(count), nil
}

func (s *DistributedSemaphore) Close() error {
	return s.client.Close()
}
