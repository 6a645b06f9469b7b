package invoker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"iprisk-backend/internal/stages"
)

// DefaultGuardTTL bounds how long a claimed (run, stage) pair stays claimed.
const DefaultGuardTTL = 24 * time.Hour

// Guard makes stage handling idempotent per (run, stage). Claim returns false
// when the pair was already claimed. Release frees a claim so a failed
// attempt can be redelivered.
type Guard interface {
	Claim(ctx context.Context, runID string, stage stages.Name) (bool, error)
	Release(ctx context.Context, runID string, stage stages.Name) error
}

func guardKey(prefix, runID string, stage stages.Name) string {
	return prefix + runID + ":" + string(stage)
}

// MemoryGuard is an in-process Guard for dev and tests.
type MemoryGuard struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	claims map[string]time.Time
}

// NewMemoryGuard returns a guard whose claims expire after ttl.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &MemoryGuard{ttl: ttl, now: time.Now, claims: map[string]time.Time{}}
}

func (g *MemoryGuard) Claim(ctx context.Context, runID string, stage stages.Name) (bool, error) {
	key := guardKey("", runID, stage)
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if exp, ok := g.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.claims[key] = now.Add(g.ttl)
	return true, nil
}

func (g *MemoryGuard) Release(ctx context.Context, runID string, stage stages.Name) error {
	g.mu.Lock()
	delete(g.claims, guardKey("", runID, stage))
	g.mu.Unlock()
	return nil
}

// redisCommands is the subset of redis.Cmdable used by RedisGuard.
type redisCommands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisGuard claims (run, stage) pairs with SETNX and a TTL so every worker
// instance shares the same view.
type RedisGuard struct {
	client    redisCommands
	keyPrefix string
	ttl       time.Duration
}

// NewRedisGuard connects to url (redis://...) and pings it.
func NewRedisGuard(ctx context.Context, url string, ttl time.Duration) (*RedisGuard, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisGuardWithClient(client, "", ttl), client, nil
}

// NewRedisGuardWithClient builds a guard over an existing client.
func NewRedisGuardWithClient(client redisCommands, keyPrefix string, ttl time.Duration) *RedisGuard {
	if keyPrefix == "" {
		keyPrefix = "iprisk:stage:"
	}
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &RedisGuard{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (g *RedisGuard) Claim(ctx context.Context, runID string, stage stages.Name) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKey(g.keyPrefix, runID, stage), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim stage: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, runID string, stage stages.Name) error {
	if err := g.client.Del(ctx, guardKey(g.keyPrefix, runID, stage)).Err(); err != nil {
		return fmt.Errorf("release stage: %w", err)
	}
	return nil
}

var (
	_ Guard = (*MemoryGuard)(nil)
	_ Guard = (*RedisGuard)(nil)
)
