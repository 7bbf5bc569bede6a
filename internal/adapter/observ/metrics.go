// Package observ holds the domain-level Prometheus collectors. HTTP
// transport metrics live in the gin middleware instead.
package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentCallbacks counts inbound gateway callbacks by outcome:
	// applied, duplicate, forged, mismatch, failed.
	PaymentCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Inbound payment callbacks by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// OrdersExpired counts orders cancelled by the payment-window sweep.
	OrdersExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Orders auto-cancelled after the payment window lapsed",
		},
	)

	// RefundsProcessed counts refunds by terminal outcome.
	RefundsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_processed_total",
			Help: "Refund requests by terminal outcome",
		},
		[]string{"outcome"},
	)
)
