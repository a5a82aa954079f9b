package cmd

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/cache"
	"github.com/jmehdipour/imei-gateway/internal/config"
	"github.com/jmehdipour/imei-gateway/internal/db"
	"github.com/jmehdipour/imei-gateway/internal/logger"
	"github.com/jmehdipour/imei-gateway/internal/lookup"
	"github.com/jmehdipour/imei-gateway/internal/provider"
	"github.com/jmehdipour/imei-gateway/internal/ratelimit"
	"github.com/jmehdipour/imei-gateway/internal/store"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newStore returns the configured expiring store and what to close on exit.
// The memory backend sweeps expired keys until ctx is done.
func newStore(ctx context.Context, cfg config.Config) (store.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		m := store.NewMemory()
		m.StartJanitor(ctx, cfg.Store.SweepInterval)
		return m, nopCloser{}, nil
	case "redis":
		rdb, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis connect: %w", err)
		}
		return store.NewRedis(rdb, cfg.Store.KeyPrefix), rdb, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newOrchestrator(cfg config.Config, s store.Store, opts ...lookup.Option) *lookup.Orchestrator {
	limiter := ratelimit.New(s, ratelimit.Config{
		Limit:  cfg.RateLimit.PerHour,
		Window: cfg.RateLimit.Window,
	})
	prov := provider.NewHTTPProvider(provider.Options{
		Timeout:       cfg.Provider.Timeout,
		FailThreshold: cfg.Provider.Breaker.FailThreshold,
		OpenFor:       cfg.Provider.Breaker.OpenFor,
	})

	if !cfg.Provider.Credentials().Complete() {
		logger.L().Warn("provider credentials incomplete, serving simulated results")
	} else {
		logger.L().Info("provider configured", zap.String("api_base", cfg.Provider.APIBase))
	}

	return lookup.New(limiter, cache.New(s), prov, lookup.Config{
		CacheTTL:     cfg.Lookup.CacheTTL,
		SimulatedTTL: cfg.Lookup.SimulatedTTL,
	}, opts...)
}
