package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/metrics"
	"github.com/jmehdipour/imei-gateway/internal/model"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestProducer_PublishRoundTrip(t *testing.T) {
	w := &captureWriter{}
	p := &Producer{w: w}

	ev := model.LookupEvent{
		ID:             "01HZY0000000000000000000AA",
		IMEI:           "490154203237518",
		Outcome:        model.OutcomeProviderOK,
		ProviderStatus: 200,
		DurationMs:     812,
		CreatedAt:      time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("490154203237518"), w.msgs[0].Key)

	got, err := DecodeEvent(w.msgs[0])
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestDecodeEvent_Rejects(t *testing.T) {
	_, err := DecodeEvent(Message{Value: []byte("{")})
	assert.Error(t, err)

	_, err = DecodeEvent(Message{Value: []byte(`{"id":"x","imei":"1","outcome":"weird"}`)})
	assert.Error(t, err)
}

func TestDeliveryReport_CountsBrokerOutcome(t *testing.T) {
	delivered := metrics.LookupEventsTotal.WithLabelValues("published", "delivered")
	failed := metrics.LookupEventsTotal.WithLabelValues("published", "error")
	d0, f0 := testutil.ToFloat64(delivered), testutil.ToFloat64(failed)

	report := deliveryReport(zap.NewNop())
	report(make([]kafka.Message, 3), nil)
	report(make([]kafka.Message, 2), errors.New("leader not available"))

	assert.Equal(t, d0+3, testutil.ToFloat64(delivered))
	assert.Equal(t, f0+2, testutil.ToFloat64(failed))
}
