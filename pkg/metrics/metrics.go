package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts successfully materialized orders.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tajer",
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Number of orders created from carts.",
	})

	// OrderCreationFailures counts rejected checkout attempts by reason.
	OrderCreationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tajer",
		Subsystem: "orders",
		Name:      "creation_failures_total",
		Help:      "Number of failed checkout attempts.",
	}, []string{"reason"})

	// StockConflicts counts reservations rejected by the conditional
	// stock guard.
	StockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tajer",
		Subsystem: "inventory",
		Name:      "stock_conflicts_total",
		Help:      "Number of stock reservations rejected for insufficient stock.",
	})

	// CouponRejections counts coupon validations that failed, by reason.
	CouponRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tajer",
		Subsystem: "coupons",
		Name:      "rejections_total",
		Help:      "Number of coupon validations rejected.",
	}, []string{"reason"})
)
