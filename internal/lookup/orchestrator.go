// Package lookup runs the IMEI check pipeline: validate, rate limit, cache,
// then the upstream provider (or a simulated result when it is not configured).
package lookup

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/cache"
	"github.com/jmehdipour/imei-gateway/internal/imei"
	"github.com/jmehdipour/imei-gateway/internal/logger"
	"github.com/jmehdipour/imei-gateway/internal/metrics"
	"github.com/jmehdipour/imei-gateway/internal/model"
	"github.com/jmehdipour/imei-gateway/internal/provider"
	"github.com/jmehdipour/imei-gateway/internal/util"
)

// UnparsedField holds the raw body of a 2xx reply that is not a JSON object.
const UnparsedField = "unparsed"

type Admitter interface {
	Admit(ctx context.Context, client string) error
}

type ResultStore interface {
	Get(ctx context.Context, id string) (model.Payload, bool)
	Put(ctx context.Context, id string, p model.Payload, ttl time.Duration) error
}

// Publisher receives one event per check of a well-formed IMEI.
type Publisher interface {
	Publish(ctx context.Context, ev model.LookupEvent) error
}

type Config struct {
	CacheTTL     time.Duration // provider results, default 24h
	SimulatedTTL time.Duration // simulated results, default 10m
}

type Orchestrator struct {
	limiter  Admitter
	results  ResultStore
	provider provider.Provider
	events   Publisher
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(limiter Admitter, results ResultStore, prov provider.Provider, cfg Config, opts ...Option) *Orchestrator {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.SimulatedTTL <= 0 {
		cfg.SimulatedTTL = cache.DefaultSimulatedTTL
	}
	o := &Orchestrator{
		limiter:  limiter,
		results:  results,
		provider: prov,
		cfg:      cfg,
		log:      logger.L().Named("lookup"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Check validates raw, charges client's quota and resolves the IMEI from the
// cache, the simulator or the provider. Errors are always *CheckError.
func (o *Orchestrator) Check(ctx context.Context, raw, client string, pc model.ProviderConfig) (model.Envelope, error) {
	start := o.now()

	id, err := imei.Validate(raw)
	if err != nil {
		metrics.ChecksTotal.WithLabelValues(model.OutcomeInvalid.String()).Inc()
		return model.Envelope{}, invalidError(err)
	}

	if err := o.limiter.Admit(ctx, client); err != nil {
		o.finish(ctx, start, model.LookupEvent{IMEI: id, Outcome: model.OutcomeThrottled})
		return model.Envelope{}, throttledError(err)
	}

	if p, ok := o.results.Get(ctx, id); ok {
		o.finish(ctx, start, model.LookupEvent{IMEI: id, Outcome: model.OutcomeCacheHit, Cached: true})
		return model.Envelope{Cached: true, Result: p}, nil
	}

	if !pc.Complete() {
		sim := SimulatedPayload()
		if err := o.results.Put(ctx, id, sim, o.cfg.SimulatedTTL); err != nil {
			o.log.Warn("cache simulated result", zap.String("imei", id), zap.Error(err))
		}
		o.finish(ctx, start, model.LookupEvent{IMEI: id, Outcome: model.OutcomeSimulated, Simulated: true})
		return model.Envelope{Simulated: true, Result: sim}, nil
	}

	res, err := o.provider.Lookup(ctx, id, pc)
	if err == nil && ctx.Err() != nil {
		// caller is gone; do not cache a result nobody waited for
		err = ctx.Err()
	}
	if err != nil {
		cerr := providerError(err)
		o.finish(ctx, start, model.LookupEvent{IMEI: id, Outcome: model.OutcomeProviderError, ProviderStatus: cerr.Status})
		o.log.Warn("provider lookup failed", zap.String("imei", id), zap.String("code", cerr.Code), zap.Error(err))
		return model.Envelope{}, cerr
	}

	payload := decodePayload(res.Body)
	if err := o.results.Put(ctx, id, payload, o.cfg.CacheTTL); err != nil {
		o.log.Warn("cache provider result", zap.String("imei", id), zap.Error(err))
	}
	o.finish(ctx, start, model.LookupEvent{IMEI: id, Outcome: model.OutcomeProviderOK, ProviderStatus: res.StatusCode})
	return model.Envelope{Result: payload}, nil
}

func decodePayload(body []byte) model.Payload {
	var p model.Payload
	if err := json.Unmarshal(body, &p); err != nil || p == nil {
		return model.Payload{UnparsedField: string(body)}
	}
	return p
}

// finish counts the outcome and publishes the lookup event. Publishing is
// detached from ctx so a client hanging up does not drop the record.
func (o *Orchestrator) finish(ctx context.Context, start time.Time, ev model.LookupEvent) {
	metrics.ChecksTotal.WithLabelValues(ev.Outcome.String()).Inc()
	if o.events == nil {
		return
	}

	now := o.now()
	ev.ID = util.NewULID(now)
	ev.CreatedAt = now.UTC()
	ev.DurationMs = now.Sub(start).Milliseconds()

	if err := o.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		metrics.LookupEventsTotal.WithLabelValues("published", "error").Inc()
		o.log.Warn("publish lookup event", zap.String("id", ev.ID), zap.Error(err))
		return
	}
	metrics.LookupEventsTotal.WithLabelValues("published", "enqueued").Inc()
}
