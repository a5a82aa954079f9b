// Package ratelimit enforces the per-client hourly check quota.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/logger"
	"github.com/jmehdipour/imei-gateway/internal/store"
)

const (
	DefaultLimit  = 60
	DefaultWindow = time.Hour
	keyPrefix     = "rl:"
)

var ErrRateLimited = errors.New("too many requests from this client, try again later")

type Config struct {
	Limit  int           // admitted requests per window; <= 0 disables limiting
	Window time.Duration // defaults to one hour
}

// Limiter is a fixed-window counter per client key. The window opens on the
// first request and is not extended by later ones.
type Limiter struct {
	store  store.Store
	limit  int64
	window time.Duration
	log    *zap.Logger
}

func New(s store.Store, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Limiter{
		store:  s,
		limit:  int64(cfg.Limit),
		window: cfg.Window,
		log:    logger.L().Named("ratelimit"),
	}
}

// Admit takes one slot for client or returns ErrRateLimited without
// consuming anything. Store failures let the request through.
func (l *Limiter) Admit(ctx context.Context, client string) error {
	if l.limit <= 0 {
		return nil
	}
	if client == "" {
		client = "0.0.0.0"
	}

	_, ok, err := l.store.IncrementBelow(ctx, keyPrefix+client, l.limit, l.window)
	if err != nil {
		l.log.Warn("rate limit store unavailable, admitting", zap.Error(err))
		return nil
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}
