package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsEvaluatedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rule_engine",
			Name:      "events_evaluated_total",
			Help:      "Total number of call events evaluated, by direction and outcome.",
		},
		[]string{"direction", "outcome"}, // outcome is "accepted" or the rejection reason
	)

	dispatchesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rule_engine",
			Name:      "dispatches_total",
			Help:      "Total number of outbound message dispatches, by channel and result.",
		},
		[]string{"channel", "status"},
	)

	providerSendDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rule_engine",
			Name:      "provider_send_duration_seconds",
			Help:      "Duration of send capability calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	configUpdatesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rule_engine",
			Name:      "config_updates_total",
			Help:      "Total number of configuration update attempts.",
		},
		[]string{"status"}, // "applied" or "rejected"
	)
)
