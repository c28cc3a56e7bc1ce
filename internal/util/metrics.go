package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_orders_failed_total",
		Help: "Total number of order placements that failed",
	}, []string{"reason"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_order_transitions_total",
		Help: "Order status transitions by target status and result",
	}, []string{"target", "result"})

	NotificationsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_notifications_written_total",
		Help: "Notifications appended to the log",
	}, []string{"type"})

	OutboxDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_outbox_delivered_total",
		Help: "Outbox events published to the broker",
	})

	OutboxFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_outbox_failed_total",
		Help: "Outbox delivery failures",
	}, []string{"outcome"})

	OutboxRelayLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "portal_outbox_relay_latency_seconds",
		Help:    "Latency of one outbox relay pass",
		Buckets: prometheus.DefBuckets,
	})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_emails_sent_total",
		Help: "Customer emails sent by template",
	}, []string{"template"})

	EmailsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_emails_failed_total",
		Help: "Customer emails that could not be sent",
	}, []string{"template"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
