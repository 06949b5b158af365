// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the generation pipeline's Prometheus metrics.
type Metrics struct {
	Registry *prometheus.Registry

	// Funnel metrics
	TrafficEvents      prometheus.Counter
	OrdersGenerated    prometheus.Counter
	DetailsGenerated   prometheus.Counter
	SkippedConversions *prometheus.CounterVec

	// Batch metrics
	TrafficBatches    prometheus.Counter
	ConversionBatches prometheus.Counter

	// Stage timing
	StageDuration *prometheus.HistogramVec

	// Current run
	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsFailed    prometheus.Counter
}

// NewMetrics creates the metrics on a private registry so tests can build
// as many instances as they like.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,

		TrafficEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "funnelgen",
			Name:      "traffic_events_total",
			Help:      "Total number of traffic events generated",
		}),
		OrdersGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "funnelgen",
			Name:      "orders_generated_total",
			Help:      "Total number of orders generated",
		}),
		DetailsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "funnelgen",
			Name:      "order_details_generated_total",
			Help:      "Total number of order detail rows generated",
		}),
		SkippedConversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "funnelgen",
			Name:      "skipped_conversions_total",
			Help:      "Conversions dropped instead of becoming orders, by reason",
		}, []string{"reason"}),

		TrafficBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "funnelgen",
			Name:      "traffic_batches_completed_total",
			Help:      "Traffic worker batches completed",
		}),
		ConversionBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "funnelgen",
			Name:      "conversion_batches_completed_total",
			Help:      "Conversion worker batches completed",
		}),

		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "funnelgen",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),

		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "funnelgen",
			Name:      "runs_started_total",
			Help:      "Generation runs started",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "funnelgen",
			Name:      "runs_completed_total",
			Help:      "Generation runs completed successfully",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "funnelgen",
			Name:      "runs_failed_total",
			Help:      "Generation runs aborted by an error",
		}),
	}

	registry.MustRegister(
		m.TrafficEvents,
		m.OrdersGenerated,
		m.DetailsGenerated,
		m.SkippedConversions,
		m.TrafficBatches,
		m.ConversionBatches,
		m.StageDuration,
		m.RunsStarted,
		m.RunsCompleted,
		m.RunsFailed,
	)

	return m
}
