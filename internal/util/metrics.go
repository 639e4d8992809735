package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentIntentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_intents_created_total",
		Help: "Total number of gateway orders created for checkout",
	})

	PaymentIntentsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intents_rejected_total",
		Help: "Payment intent requests rejected before reaching the gateway",
	}, []string{"reason"})

	SignatureFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_signature_failures_total",
		Help: "Requests rejected for an invalid gateway signature",
	}, []string{"source"})

	FinalizeOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_finalize_outcomes_total",
		Help: "Finalize attempts by outcome",
	}, []string{"outcome"})

	FinalizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_finalize_latency_seconds",
		Help:    "Latency of the finalize transaction",
		Buckets: prometheus.DefBuckets,
	})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ReconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_runs_total",
		Help: "Total number of reconciliation sweeps",
	})

	ReconcileOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_orders_total",
		Help: "Orders examined by reconciliation, by result",
	}, []string{"result"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_events_published_total",
		Help: "Events written to the event queue",
	}, []string{"type"})

	EventsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_events_processed_total",
		Help: "Events processed by the event worker",
	}, []string{"type", "status"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Transactional emails by recipient kind and result",
	}, []string{"kind", "result"})

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
