package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// UploadBatches counts upload attempts by outcome (ok, invalid, failed).
var UploadBatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderstats_upload_batches_total",
		Help: "Total number of order batches submitted, by outcome",
	},
	[]string{"outcome"},
)

// OrdersUpserted counts persisted orders by kind (created, updated).
var OrdersUpserted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderstats_orders_upserted_total",
		Help: "Total number of orders written by uploads, by kind",
	},
	[]string{"kind"},
)

var ItemsCreated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderstats_order_items_created_total",
		Help: "Total number of order items inserted by uploads",
	},
)

// DailyStatsRuns counts snapshot job runs by outcome (created, exists, failed).
var DailyStatsRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderstats_daily_stats_runs_total",
		Help: "Total number of daily stats job runs, by outcome",
	},
	[]string{"outcome"},
)

var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderstats_http_requests_total",
		Help: "Total number of HTTP requests, by route and status code",
	},
	[]string{"route", "code"},
)

var HTTPLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "orderstats_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds, by route",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route"},
)

func init() {
	prometheus.MustRegister(UploadBatches, OrdersUpserted, ItemsCreated, DailyStatsRuns)
	prometheus.MustRegister(HTTPRequests, HTTPLatency)
}
