// Package cache holds read-through Redis caches in front of slow stores.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"

	"github.com/redis/go-redis/v9"
)

const rateTableKeyPrefix = "ratetable:"

// RateTableCache decorates a RateTableRepository. Redis failures are logged
// and fall through to the underlying repository; they never fail a lookup.
type RateTableCache struct {
	next   repository.RateTableRepository
	client redis.Cmdable
	ttl    time.Duration
}

func NewRateTableCache(next repository.RateTableRepository, client redis.Cmdable, ttl time.Duration) *RateTableCache {
	return &RateTableCache{next: next, client: client, ttl: ttl}
}

func rateTableKey(carID string) string {
	return rateTableKeyPrefix + carID
}

func (c *RateTableCache) Get(ctx context.Context, carID string) (*domain.RateTable, error) {
	key := rateTableKey(carID)

	logger.ExternalServiceCall("redis", "GET", "key", key)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rt domain.RateTable
		jsonErr := json.Unmarshal(raw, &rt)
		if jsonErr == nil {
			logger.Debug("Rate table cache hit", "carID", carID)
			return &rt, nil
		}
		logger.Warn("Discarding undecodable cached rate table", "carID", carID, "error", jsonErr)
	case errors.Is(err, redis.Nil):
		logger.Debug("Rate table cache miss", "carID", carID)
	default:
		logger.Warn("Rate table cache unavailable", "carID", carID, "error", err)
	}

	rt, err := c.next.Get(ctx, carID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(rt)
	if err != nil {
		logger.Warn("Failed to encode rate table for cache", "carID", carID, "error", err)
		return rt, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("Failed to cache rate table", "carID", carID, "error", err)
	}
	logger.ExternalServiceResult("redis", "SET", nil, "key", key)
	return rt, nil
}

// Invalidate drops a car's cached table after its rates are edited.
func (c *RateTableCache) Invalidate(ctx context.Context, carID string) error {
	key := rateTableKey(carID)
	err := c.client.Del(ctx, key).Err()
	logger.ExternalServiceResult("redis", "DEL", err, "key", key)
	return err
}
