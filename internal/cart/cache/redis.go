package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_market/internal/cart/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewRedisCache(client *redis.Client) *RedisCache {
	// The breaker keeps a dead Redis from adding latency to every cart
	// read; callers fall back to the repository on any cache error.
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "cart-cache",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
		breaker: cb,
	}
}

func (r *RedisCache) Get(ctx context.Context, vendorID string) (*domain.Cart, error) {
	key := cacheKey(vendorID)

	data, err := r.breaker.Execute(func() ([]byte, error) {
		b, getErr := r.client.Get(ctx, key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			// A miss is not a Redis failure; don't count it against the breaker.
			return nil, nil
		}
		return b, getErr
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	if data == nil {
		return nil, ErrCacheMiss
	}

	var cart domain.Cart
	if err2 := json.Unmarshal(data, &cart); err2 != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err2)
	}

	return &cart, nil
}

func (r *RedisCache) Set(ctx context.Context, vendorID string, cart *domain.Cart) error {
	key := cacheKey(vendorID)
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	_, err = r.breaker.Execute(func() ([]byte, error) {
		return nil, r.client.Set(ctx, key, string(jsonCart), ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, vendorID string) error {
	key := cacheKey(vendorID)
	_, err := r.breaker.Execute(func() ([]byte, error) {
		return nil, r.client.Del(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func cacheKey(vendorID string) string {
	return fmt.Sprintf("cart:%s", vendorID)
}
