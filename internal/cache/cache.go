// Package cache keeps previously computed IMEI results in the expiring store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/logger"
	"github.com/jmehdipour/imei-gateway/internal/model"
	"github.com/jmehdipour/imei-gateway/internal/store"
)

const (
	DefaultTTL          = 24 * time.Hour
	DefaultSimulatedTTL = 10 * time.Minute
	keyPrefix           = "result:"
)

type ResultCache struct {
	store store.Store
	log   *zap.Logger
}

func New(s store.Store) *ResultCache {
	return &ResultCache{store: s, log: logger.L().Named("cache")}
}

// Get returns the cached payload for id. Store or decoding failures are logged
// and reported as a miss.
func (c *ResultCache) Get(ctx context.Context, id string) (model.Payload, bool) {
	b, ok, err := c.store.Get(ctx, keyPrefix+id)
	if err != nil {
		c.log.Warn("cache get failed", zap.String("imei", id), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var p model.Payload
	if err := json.Unmarshal(b, &p); err != nil || p == nil {
		c.log.Warn("cache entry undecodable", zap.String("imei", id), zap.Error(err))
		return nil, false
	}
	return p, true
}

// Put overwrites the entry for id, expiring after ttl.
func (c *ResultCache) Put(ctx context.Context, id string, p model.Payload, ttl time.Duration) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := c.store.Set(ctx, keyPrefix+id, b, ttl); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}
