// Package cache provides a redis read-through cache in front of the sample
// store. Only the latest-sample lookup is cached: it is the hottest query
// (every evaluation and buy-threshold sweep reads it) and tolerates a few
// seconds of staleness. Window queries always go to the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/framefrok/bsma/internal/storage"
)

const keyPrefix = "bsma:latest:"

// LatestSampleCache wraps a SampleStore and serves LatestSample from redis
// when possible. Redis failures degrade to the underlying store, never to an
// error for the caller.
type LatestSampleCache struct {
	storage.SampleStore

	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New wires a redis client in front of a sample store.
func New(client *redis.Client, store storage.SampleStore, ttl time.Duration, logger zerolog.Logger) *LatestSampleCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LatestSampleCache{
		SampleStore: store,
		client:      client,
		ttl:         ttl,
		logger:      logger.With().Str("component", "sample_cache").Logger(),
	}
}

// LatestSample returns the newest sample for a resource, preferring the
// cached copy.
func (c *LatestSampleCache) LatestSample(ctx context.Context, resource string) (*storage.MarketSample, error) {
	key := keyPrefix + resource

	payload, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var sample storage.MarketSample
		if unmarshalErr := json.Unmarshal([]byte(payload), &sample); unmarshalErr == nil {
			return &sample, nil
		}
		c.logger.Warn().Str("resource", resource).Msg("discarding undecodable cache entry")
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn().Err(err).Str("resource", resource).Msg("cache read failed; falling back to store")
	}

	sample, err := c.SampleStore.LatestSample(ctx, resource)
	if err != nil || sample == nil {
		return sample, err
	}

	if encoded, marshalErr := json.Marshal(sample); marshalErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.Warn().Err(setErr).Str("resource", resource).Msg("cache write failed")
		}
	}
	return sample, nil
}

var _ storage.SampleStore = (*LatestSampleCache)(nil)
