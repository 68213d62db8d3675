package metrics

import "github.com/prometheus/client_golang/prometheus"

// Tracking engine Prometheus metrics.
var (
	TelemetryTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spooltrack",
			Name:      "telemetry_ticks_total",
			Help:      "Total telemetry counter observations",
		},
		[]string{"result"}, // "applied" / "discarded" / "anomaly"
	)

	TelemetryAnomaliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spooltrack",
			Name:      "telemetry_anomalies_total",
			Help:      "Implausible deltas discarded as counter resets or spikes",
		},
	)

	FilamentUsedMM = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spooltrack",
			Name:      "filament_used_mm_total",
			Help:      "Filament length attributed to spools, in mm",
		},
		[]string{"spool"},
	)

	PrintsCommittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spooltrack",
			Name:      "prints_committed_total",
			Help:      "Print windows committed to the history ledger",
		},
		[]string{"spool", "status"},
	)

	UndoTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spooltrack",
			Name:      "undo_total",
			Help:      "History entries reverted",
		},
		[]string{"spool"},
	)
)

var trackingMetricsRegistered bool

// RegisterTrackingMetrics registers the engine metrics. Must be called once from main.
func RegisterTrackingMetrics() {
	if trackingMetricsRegistered {
		return
	}
	prometheus.MustRegister(TelemetryTicksTotal)
	prometheus.MustRegister(TelemetryAnomaliesTotal)
	prometheus.MustRegister(FilamentUsedMM)
	prometheus.MustRegister(PrintsCommittedTotal)
	prometheus.MustRegister(UndoTotal)
	trackingMetricsRegistered = true
}
