package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// VectorCache memoizes embeddings by content hash so re-ingesting an
// unchanged document skips the embedding backend.
type VectorCache interface {
	// Get returns the cached vector for key, with a hit flag.
	Get(ctx context.Context, key string) ([]float32, bool, error)
	// Set stores a vector under key.
	Set(ctx context.Context, key string, vector []float32) error
}

// CacheKey derives the cache key for a chunk text under a given model.
// Different models never share entries.
func CacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "emb:" + hex.EncodeToString(h.Sum(nil))
}

// RedisCache stores vectors in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed vector cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read embedding cache: %w", err)
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		// A corrupt entry behaves like a miss and gets overwritten.
		return nil, false, nil
	}
	return vec, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, vector []float32) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	// The key is a content hash, so the first writer wins and
	// concurrent ingesters never clobber each other.
	if err := c.client.SetNX(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write embedding cache: %w", err)
	}
	return nil
}

// MemoryCache is an in-process vector cache for tests and deployments
// without Redis.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string][]float32
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]float32)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec := make([]float32, len(vector))
	copy(vec, vector)
	c.data[key] = vec
	return nil
}
