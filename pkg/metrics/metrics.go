// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "playthrough_rules"

var (
	// PicksTotal counts direct pick attempts by result.
	PicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "picks_total",
			Help:      "Total number of direct rule picks by result",
		},
		[]string{"result"},
	)

	// QueueProcessTotal counts processQueue calls by outcome.
	QueueProcessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_process_total",
			Help:      "Total number of queue processing attempts by outcome",
		},
		[]string{"result", "reason"},
	)

	// ActivationsTotal counts rule activations by source and rule type.
	ActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Total number of rule activations",
		},
		[]string{"source", "rule_type"},
	)

	// EnqueuedTotal counts queue entries created.
	EnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueued_total",
			Help:      "Total number of queued activation requests",
		},
	)

	// SettledTotal counts rule instances completed after ending naturally.
	SettledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_instances_total",
			Help:      "Total number of naturally ended rule instances marked completed",
		},
	)

	// ETASeconds observes predicted activation latency of queued requests.
	ETASeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_eta_seconds",
			Help:      "Predicted seconds until a queued request activates",
			Buckets:   []float64{0, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// SweepDuration observes how long one sweeper run takes.
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiry sweeper runs",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Collectors returns every collector of this package for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		PicksTotal,
		QueueProcessTotal,
		ActivationsTotal,
		EnqueuedTotal,
		SettledTotal,
		ETASeconds,
		SweepDuration,
	}
}

// Register adds all collectors to registry.
func Register(registry prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
