package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	checkoutsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "checkout",
			Name:      "started_total",
			Help:      "Total number of started checkout sessions",
		},
	)

	ordersCommitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "checkout",
			Name:      "orders_committed_total",
			Help:      "Total number of successfully committed orders",
		},
	)

	paymentsDeclined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "checkout",
			Name:      "payments_declined_total",
			Help:      "Total number of payments declined by the gateway",
		},
	)

	paymentTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "checkout",
			Name:      "payment_timeouts_total",
			Help:      "Total number of gateway calls that timed out",
		},
	)

	stockConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "checkout",
			Name:      "stock_conflicts_total",
			Help:      "Total number of order commits rejected by stock revalidation",
		},
	)

	reconciliationsRequired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "checkout",
			Name:      "reconciliations_required_total",
			Help:      "Total number of settled payments whose order commit failed",
		},
	)

	cartMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "checkout_service",
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Total number of cart mutations by operation and result",
		},
		[]string{"op", "status"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		checkoutsStarted,
		ordersCommitted,
		paymentsDeclined,
		paymentTimeouts,
		stockConflicts,
		reconciliationsRequired,
		cartMutations,
	)
}
