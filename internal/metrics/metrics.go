package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imeigw_checks_total",
			Help: "IMEI checks by terminal outcome",
		},
		[]string{"outcome"}, // invalid|throttled|cache_hit|simulated|provider_ok|provider_error
	)

	ProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imeigw_provider_request_duration_seconds",
			Help:    "Latency of upstream IMEI provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"}, // 2xx|4xx|5xx|error
	)

	LookupEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imeigw_lookup_events_total",
			Help: "Lookup events by publish/record result",
		},
		// published: enqueued|delivered|error ; recorded: ok|error|skipped
		[]string{"stage", "result"},
	)

	registerOnce sync.Once
)

// MustRegister registers all collectors once; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			ChecksTotal,
			ProviderDuration,
			LookupEventsTotal,
		)
	})
}
