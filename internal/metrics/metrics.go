package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unirun_http_requests_total",
		Help: "Total number of HTTP requests by method, route and status.",
	},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unirun_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"method", "path"},
	)

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unirun_order_transitions_total",
		Help: "Total number of committed order transitions.",
	},
		[]string{"transition"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unirun_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation", "kind"},
	)

	PointsChangedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unirun_points_changed_total",
		Help: "Total number of point ledger entries written, by source.",
	},
		[]string{"source"},
	)

	OutboxSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unirun_outbox_sent_total",
		Help: "Outbox delivery attempts by result.",
	},
		[]string{"result"},
	)
)
