package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// PrinterChecker checks printer telemetry endpoint availability.
type PrinterChecker interface {
	HealthCheck(ctx context.Context) error
}
