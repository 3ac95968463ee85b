package refcode

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sequencer hands out monotonically increasing values per scope.
type Sequencer interface {
	Next(ctx context.Context, scope string) (int64, error)
}

const (
	redisKeyPrefix = "refcode:"
	redisKeyTTL    = 48 * time.Hour
)

// RedisSequencer counts with INCR on a per-scope key. Keys expire once the
// day they describe has passed.
type RedisSequencer struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSequencer builds a sequencer on an established client.
func NewRedisSequencer(client *redis.Client) *RedisSequencer {
	return &RedisSequencer{client: client, ttl: redisKeyTTL}
}

func (s *RedisSequencer) Next(ctx context.Context, scope string) (int64, error) {
	key := redisKeyPrefix + scope
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MemorySequencer keeps counters in process.
type MemorySequencer struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemorySequencer builds an empty sequencer.
func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{counters: make(map[string]int64)}
}

func (s *MemorySequencer) Next(_ context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[scope]++
	return s.counters[scope], nil
}
