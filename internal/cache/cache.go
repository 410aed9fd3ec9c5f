package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Clock returns the current time. Injectable so TTL behavior is testable.
type Clock func() time.Time

// Store is the persisted second tier. Implementations must retain entries
// past their TTL: expiry is decided by TwoTier, and stale values are still
// served on upstream quota exhaustion.
type Store interface {
	Get(ctx context.Context, key string) (data []byte, writtenAt time.Time, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, writtenAt time.Time) error
}

type memEntry struct {
	data      []byte
	writtenAt time.Time
}

// TwoTier is a memory-over-persisted response cache with a shared TTL.
// Lookup order: memory, then store (repopulating memory on a fresh hit).
type TwoTier struct {
	mu    sync.Mutex
	mem   map[string]memEntry
	store Store
	ttl   time.Duration
	now   Clock
}

func NewTwoTier(store Store, ttl time.Duration, now Clock) *TwoTier {
	if now == nil {
		now = time.Now
	}
	return &TwoTier{
		mem:   make(map[string]memEntry),
		store: store,
		ttl:   ttl,
		now:   now,
	}
}

// Get returns the cached value for key if it is still fresh in either tier.
func (c *TwoTier) Get(ctx context.Context, key string) ([]byte, bool) {
	nowT := c.now()

	c.mu.Lock()
	// Expired entries stay resident: both tiers retain stale values so
	// GetStale can serve them when the upstream quota is exhausted.
	if e, ok := c.mem[key]; ok && nowT.Sub(e.writtenAt) < c.ttl {
		c.mu.Unlock()
		return e.data, true
	}
	c.mu.Unlock()

	if c.store == nil {
		return nil, false
	}

	data, writtenAt, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	if nowT.Sub(writtenAt) >= c.ttl {
		return nil, false
	}

	c.mu.Lock()
	c.mem[key] = memEntry{data: data, writtenAt: writtenAt}
	c.mu.Unlock()

	return data, true
}

// GetStale returns the most recent value for key regardless of TTL. Used as
// the quota-exhaustion fallback.
func (c *TwoTier) GetStale(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	if e, ok := c.mem[key]; ok {
		c.mu.Unlock()
		return e.data, true
	}
	c.mu.Unlock()

	if c.store == nil {
		return nil, false
	}

	data, _, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	return data, true
}

// Set writes the value to both tiers stamped with the current time.
func (c *TwoTier) Set(ctx context.Context, key string, data []byte) {
	nowT := c.now()

	c.mu.Lock()
	c.mem[key] = memEntry{data: data, writtenAt: nowT}
	c.mu.Unlock()

	if c.store != nil {
		// Store failures are non-fatal: the memory tier still has the value.
		c.store.Set(ctx, key, data, nowT)
	}
}

// RedisStore persists cache entries in Redis without a key TTL so expired
// entries stay retrievable for the stale fallback path.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

type storedEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}

	var e storedEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, time.Time{}, false, err
	}
	return e.Data, time.UnixMilli(e.Timestamp), true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte, writtenAt time.Time) error {
	raw, err := json.Marshal(storedEntry{Data: data, Timestamp: writtenAt.UnixMilli()})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, raw, 0).Err()
}
