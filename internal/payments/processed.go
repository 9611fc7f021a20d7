package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultProcessedTTL = 72 * time.Hour

// ProcessedTracker remembers webhook events that were already handled.
type ProcessedTracker interface {
	// MarkProcessed claims the event; false means it was claimed before.
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
	// Release drops a claim so a redelivery is handled again.
	Release(ctx context.Context, provider, eventID string) error
}

// RedisProcessedTracker claims events with SETNX so several API instances
// agree on which one handles a delivery.
type RedisProcessedTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProcessedTracker(client *redis.Client, ttl time.Duration) *RedisProcessedTracker {
	if client == nil {
		panic("payments: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultProcessedTTL
	}
	return &RedisProcessedTracker{client: client, ttl: ttl}
}

func (t *RedisProcessedTracker) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := t.client.SetNX(ctx, processedKey(provider, eventID), time.Now().UTC().Format(time.RFC3339), t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("payments: mark processed: %w", err)
	}
	return ok, nil
}

func (t *RedisProcessedTracker) Release(ctx context.Context, provider, eventID string) error {
	if err := t.client.Del(ctx, processedKey(provider, eventID)).Err(); err != nil {
		return fmt.Errorf("payments: release processed: %w", err)
	}
	return nil
}

func processedKey(provider, eventID string) string {
	return "webhook:processed:" + provider + ":" + eventID
}

// MemoryProcessedTracker is the single-instance fallback.
type MemoryProcessedTracker struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryProcessedTracker(ttl time.Duration) *MemoryProcessedTracker {
	if ttl <= 0 {
		ttl = defaultProcessedTTL
	}
	return &MemoryProcessedTracker{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (t *MemoryProcessedTracker) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	key := processedKey(provider, eventID)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if exp, ok := t.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	t.seen[key] = now.Add(t.ttl)
	t.pruneLocked(now)
	return true, nil
}

func (t *MemoryProcessedTracker) Release(ctx context.Context, provider, eventID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, processedKey(provider, eventID))
	return nil
}

func (t *MemoryProcessedTracker) pruneLocked(now time.Time) {
	for key, exp := range t.seen {
		if !now.Before(exp) {
			delete(t.seen, key)
		}
	}
}
