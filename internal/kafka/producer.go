package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/logger"
	"github.com/jmehdipour/imei-gateway/internal/metrics"
	"github.com/jmehdipour/imei-gateway/internal/model"
)

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes lookup events keyed by IMEI, so all events of one
// device land on the same partition.
type Producer struct {
	w messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	log := logger.L().Named("kafka")
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion:             deliveryReport(log),
	}
	return &Producer{w: w}
}

// deliveryReport settles async writes: Publish only counts events as enqueued,
// the broker's answer lands here.
func deliveryReport(log *zap.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		result := "delivered"
		if err != nil {
			result = "error"
			log.Warn("lookup events not delivered", zap.Int("count", len(msgs)), zap.Error(err))
		}
		metrics.LookupEventsTotal.WithLabelValues("published", result).Add(float64(len(msgs)))
	}
}

func EncodeEvent(ev model.LookupEvent) (kafka.Message, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal lookup event: %w", err)
	}
	return kafka.Message{Key: []byte(ev.IMEI), Value: b, Time: ev.CreatedAt}, nil
}

func DecodeEvent(m Message) (model.LookupEvent, error) {
	var ev model.LookupEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return model.LookupEvent{}, fmt.Errorf("unmarshal lookup event: %w", err)
	}
	if ev.ID == "" || ev.IMEI == "" || !ev.Outcome.Valid() {
		return model.LookupEvent{}, fmt.Errorf("incomplete lookup event at offset %d", m.Offset)
	}
	return ev, nil
}

func (p *Producer) Publish(ctx context.Context, ev model.LookupEvent) error {
	msg, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error { return p.w.Close() }
