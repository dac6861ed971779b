package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweetAPIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweetapi_request_duration_seconds",
		Help:    "Latency of requests to the remote sweets service",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	CatalogFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_tokenless_fallbacks_total",
		Help: "Catalog fetches retried without a rejected token",
	})

	CatalogFetchFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_fetch_failed_total",
		Help: "Catalog fetches that surfaced an error",
	}, []string{"kind"})

	RoleProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "role_probes_total",
		Help: "Capability probes by classification",
	}, []string{"result"})

	PurchaseAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_attempts_total",
		Help: "Purchase transactions by result",
	}, []string{"result"})

	PurchaseLinesCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_lines_committed_total",
		Help: "Cart lines committed against the remote inventory",
	})

	PurchaseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchase_latency_seconds",
		Help:    "Latency of a full purchase transaction",
		Buckets: prometheus.DefBuckets,
	})

	ReceiptsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_recorded_total",
		Help: "Receipts written to the ledger",
	}, []string{"status"})

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
