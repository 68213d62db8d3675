package metrics

import "github.com/prometheus/client_golang/prometheus"

// Printer telemetry transport Prometheus metrics.
var (
	PrinterRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spooltrack",
			Name:      "printer_requests_total",
			Help:      "Total requests to the printer telemetry endpoint",
		},
		[]string{"status"}, // "success" / "error"
	)

	PrinterRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "spooltrack",
			Name:      "printer_request_duration_seconds",
			Help:      "Printer telemetry request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

var printerMetricsRegistered bool

// RegisterPrinterMetrics registers printer transport metrics. Must be called once from main.
func RegisterPrinterMetrics() {
	if printerMetricsRegistered {
		return
	}
	prometheus.MustRegister(PrinterRequestsTotal)
	prometheus.MustRegister(PrinterRequestDuration)
	printerMetricsRegistered = true
}
