package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Channel label values.
const (
	labelPush      = "push"
	labelTelemetry = "telemetry"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garage_alert_dispatch_total",
			Help: "Total dispatched events by kind and effective severity.",
		},
		[]string{"kind", "severity"},
	)
	channelSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garage_alert_channel_send_total",
			Help: "Total channel calls by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)
	channelSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "garage_alert_channel_send_duration_seconds",
			Help:    "Duration of channel calls, including gate checks.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)
)
