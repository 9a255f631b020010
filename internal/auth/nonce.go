package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore tracks one-time nonces for anti-replay protection. Consume
// returns true exactly once per nonce within the ttl window.
type NonceStore interface {
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// RedisNonceStore implements NonceStore on Redis, for deployments where
// triggers can land on any instance.
type RedisNonceStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisNonceStore returns a nonce store using an existing Redis client.
func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{
		client:    client,
		keyPrefix: "webchain:nonce:",
	}
}

// Consume marks the nonce used. SetNX makes first-use detection atomic
// across instances.
func (s *RedisNonceStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+nonce, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume nonce: %w", err)
	}
	return ok, nil
}

// MemoryNonceStore implements NonceStore in process memory, for local runs
// and tests.
type MemoryNonceStore struct {
	mu   sync.Mutex
	used map[string]time.Time
}

// NewMemoryNonceStore returns an empty in-memory nonce store.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		used: make(map[string]time.Time),
	}
}

// Consume marks the nonce used and sweeps expired entries opportunistically.
func (s *MemoryNonceStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, expiry := range s.used {
		if now.After(expiry) {
			delete(s.used, k)
		}
	}

	if _, exists := s.used[nonce]; exists {
		return false, nil
	}
	s.used[nonce] = now.Add(ttl)
	return true, nil
}
