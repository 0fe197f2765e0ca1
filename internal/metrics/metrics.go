// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsProcessedTotal counts finished work items by outcome.
	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rasterwarp_items_processed_total",
			Help: "Total number of work items processed, by outcome.",
		},
		[]string{"status"}, // success, warp_failed, overview_failed
	)

	// OutstandingItems tracks items submitted but not yet drained.
	OutstandingItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rasterwarp_outstanding_items",
			Help: "Number of work items submitted but not yet drained.",
		},
	)

	// MessagesPublishedTotal counts completion messages sent on the bus.
	MessagesPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rasterwarp_messages_published_total",
			Help: "Total number of completion messages published.",
		},
	)

	// SubscriptionRestartsTotal counts idle-timeout resubscriptions.
	SubscriptionRestartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rasterwarp_subscription_restarts_total",
			Help: "Number of idle-timeout subscription restarts.",
		},
	)
)
