package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const opTimeout = 3 * time.Second

// RedisCache is a Cache on top of go-redis. Calls go through a circuit
// breaker so a dead Redis fails fast with ErrCacheDown.
type RedisCache struct {
	client  *redis.Client
	breaker *CircuitBreaker
	metrics *CacheMetrics
}

type CacheConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Breaker      *CircuitBreakerConfig
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func NewRedisClient(config *CacheConfig) *redis.Client {
	if config == nil {
		config = DefaultCacheConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})
}

func NewRedisCache(config *CacheConfig) *RedisCache {
	if config == nil {
		config = DefaultCacheConfig()
	}
	return NewRedisCacheWithClient(NewRedisClient(config), config.Breaker)
}

// NewRedisCacheWithClient shares an existing client, e.g. with the job queue.
func NewRedisCacheWithClient(client *redis.Client, breaker *CircuitBreakerConfig) *RedisCache {
	return &RedisCache{
		client:  client,
		breaker: NewCircuitBreaker(breaker),
		metrics: NewCacheMetrics(),
	}
}

func (r *RedisCache) Client() *redis.Client {
	return r.client
}

func (r *RedisCache) Metrics() *CacheMetrics {
	return r.metrics
}

func (r *RedisCache) do(fn func() error) error {
	err := r.breaker.Execute(fn)
	if errors.Is(err, ErrCircuitBreakerOpen) {
		r.metrics.RecordError()
		return ErrCacheDown
	}
	if err != nil {
		r.metrics.RecordError()
	}
	return err
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = r.do(func() error {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
			return fmt.Errorf("failed to set cache: %w", err)
		}
		return nil
	})
	if err == nil {
		r.metrics.RecordSet()
	}
	return err
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte
	miss := false

	err := r.do(func() error {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		raw, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			miss = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get from cache: %w", err)
		}
		data = raw
		return nil
	})
	if err != nil {
		return err
	}
	if miss {
		r.metrics.RecordMiss()
		return ErrCacheMiss
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	r.metrics.RecordHit()
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := r.do(func() error {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		return r.client.Del(ctx, keys...).Err()
	})
	if err == nil {
		r.metrics.RecordDelete()
	}
	return err
}

// DeletePattern walks the keyspace with SCAN so large databases do not block.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	return r.do(func() error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == 100 {
				if err := r.client.Del(ctx, batch...).Err(); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan keys for pattern %s: %w", pattern, err)
		}
		if len(batch) > 0 {
			return r.client.Del(ctx, batch...).Err()
		}
		return nil
	})
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := r.do(func() error {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		n, err := r.client.Exists(ctx, key).Result()
		found = n > 0
		return err
	})
	return found, err
}

func (r *RedisCache) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Stats() map[string]interface{} {
	poolStats := r.client.PoolStats()
	m := r.metrics.GetStats()

	return map[string]interface{}{
		"backend":         "redis",
		"hits":            m.Hits,
		"misses":          m.Misses,
		"errors":          m.Errors,
		"sets":            m.Sets,
		"deletes":         m.Deletes,
		"hit_rate":        r.metrics.HitRate(),
		"circuit_breaker": r.breaker.GetStats(),
		"pool_hits":       poolStats.Hits,
		"pool_misses":     poolStats.Misses,
		"pool_timeouts":   poolStats.Timeouts,
		"pool_total":      poolStats.TotalConns,
		"pool_idle":       poolStats.IdleConns,
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
