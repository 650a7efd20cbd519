package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	OrderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_order_operations_total",
			Help: "Order transitions by operation and outcome",
		},
		[]string{"operation", "result"},
	)

	StockUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_stock_units_total",
			Help: "Stock units moved by the ledger",
		},
		[]string{"direction"},
	)

	AuditEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_audit_events_total",
			Help: "Audit events by delivery result",
		},
		[]string{"result"},
	)
)

// RecordOrderOperation mencatat hasil satu transisi order.
func RecordOrderOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	OrderOperations.WithLabelValues(operation, result).Inc()
}
