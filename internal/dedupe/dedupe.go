package dedupe

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard answers "has this offer id been seen before?" at the ingress edge.
// It complements the offer store's duplicate check by surviving process
// restarts when backed by Redis.
type Guard interface {
	// FirstSeen returns true exactly once per id within the retention window.
	FirstSeen(ctx context.Context, offerID string) (bool, error)
}

// RedisGuard uses SETNX with a TTL so webhook retries across restarts are
// still collapsed.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(addr, password string, ttl time.Duration) *RedisGuard {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGuard{client: c, ttl: ttl}
}

func (g *RedisGuard) FirstSeen(ctx context.Context, offerID string) (bool, error) {
	return g.client.SetNX(ctx, "offer:seen:"+offerID, 1, g.ttl).Result()
}

func (g *RedisGuard) Close() error { return g.client.Close() }

// MemoryGuard is the single-process fallback when Redis is not configured.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]time.Time), ttl: ttl}
}

func (g *MemoryGuard) FirstSeen(_ context.Context, offerID string) (bool, error) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if at, ok := g.seen[offerID]; ok && now.Sub(at) < g.ttl {
		return false, nil
	}
	g.seen[offerID] = now
	// opportunistic sweep
	for id, at := range g.seen {
		if now.Sub(at) >= g.ttl {
			delete(g.seen, id)
		}
	}
	return true, nil
}
