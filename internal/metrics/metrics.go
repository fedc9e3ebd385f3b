package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouija_requests_total",
			Help: "Total number of action requests",
		},
		[]string{"action", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ouija_request_duration_seconds",
			Help: "Action request duration in seconds",
		},
		[]string{"action"},
	)

	InferenceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ouija_inference_latency_seconds",
			Help:    "Chat-completion latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"purpose"},
	)

	InferenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouija_inference_errors_total",
			Help: "Chat-completion calls that failed",
		},
		[]string{"purpose"},
	)

	SpiritsSummoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouija_spirits_summoned_total",
			Help: "Spirits generated, labelled by whether the model output was usable",
		},
		[]string{"outcome"},
	)

	SentinelResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ouija_sentinel_resets_total",
			Help: "Replies in which the spirit asked to hand over to a new spirit",
		},
	)

	RecordsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ouija_records_purged_total",
			Help: "Invalid spirit records deleted from storage",
		},
	)

	ChannelMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ouija_channel_messages_total",
			Help: "Messages received from chat channels",
		},
		[]string{"channel"},
	)
)
