package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/kafka"
	"github.com/jmehdipour/imei-gateway/internal/logger"
	"github.com/jmehdipour/imei-gateway/internal/metrics"
	"github.com/jmehdipour/imei-gateway/internal/model"
)

// Source is the consumer side of the lookup topic.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Sink stores one lookup event. Inserts must be idempotent on the event ID:
// a failed message is retried against every sink.
type Sink interface {
	Insert(ctx context.Context, ev model.LookupEvent) error
}

// Recorder copies lookup events from Kafka into the history stores (MySQL,
// plus ClickHouse for reporting). Offsets are committed only after every sink
// has the row; undecodable messages are skipped.
type Recorder struct {
	Source Source
	Sinks  []Sink

	RetryWait time.Duration // pause after a failed insert before retrying
	log       *zap.Logger
}

func NewRecorder(src Source, sinks ...Sink) *Recorder {
	return &Recorder{
		Source:    src,
		Sinks:     sinks,
		RetryWait: time.Second,
		log:       logger.L().Named("recorder"),
	}
}

// Run blocks until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		m, err := r.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		// keep the offset uncommitted until the row is stored
		for {
			err := r.handle(ctx, m)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warn("record lookup event", zap.Int64("offset", m.Offset), zap.Error(err))
			metrics.LookupEventsTotal.WithLabelValues("recorded", "error").Inc()

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.RetryWait):
			}
		}

		if err := r.Source.Commit(ctx, m); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func (r *Recorder) handle(ctx context.Context, m kafka.Message) error {
	ev, err := kafka.DecodeEvent(m)
	if err != nil {
		r.log.Warn("skip malformed lookup event", zap.Int64("offset", m.Offset), zap.Error(err))
		metrics.LookupEventsTotal.WithLabelValues("recorded", "skipped").Inc()
		return nil
	}
	for _, sink := range r.Sinks {
		if err := sink.Insert(ctx, ev); err != nil {
			return err
		}
	}
	metrics.LookupEventsTotal.WithLabelValues("recorded", "ok").Inc()
	return nil
}
