// Package poll drives the tracking engine off the printer's telemetry
// endpoint at a fixed interval.
package poll

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	domsession "github.com/kailas-cloud/spooltrack/internal/domain/session"
	"github.com/kailas-cloud/spooltrack/internal/transport/printer"
)

// DefaultInterval is the telemetry poll period.
const DefaultInterval = 60 * time.Second

// Source provides telemetry snapshots.
type Source interface {
	Fetch(ctx context.Context) (printer.StatusReport, error)
}

// Tracker consumes raw cumulative counter observations.
type Tracker interface {
	Observe(ctx context.Context, raw float64) error
}

// Sessions consumes device status observations.
type Sessions interface {
	HandleStatus(ctx context.Context, status domsession.Status, file string) error
}

// Poller ticks the engine. A failed fetch skips the tick; the engine's
// delta logic absorbs the gap on the next successful one.
type Poller struct {
	source   Source
	tracker  Tracker
	sessions Sessions
	interval time.Duration
	logger   *zap.Logger
}

// New creates a poller (interval <= 0 uses DefaultInterval).
func New(source Source, tracker Tracker, sessions Sessions, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		source:   source,
		tracker:  tracker,
		sessions: sessions,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. The first tick fires immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one poll cycle: fetch, attribute usage, then advance the
// session state machine. Usage goes first so the closing tick of a print
// still counts its final extrusion before the window is committed.
func (p *Poller) Tick(ctx context.Context) {
	report, err := p.source.Fetch(ctx)
	if err != nil {
		p.logger.Warn("telemetry poll failed, tick skipped", zap.Error(err))
		return
	}

	if err := p.tracker.Observe(ctx, report.ExtrudedMM); err != nil {
		p.logger.Warn("telemetry observation failed", zap.Error(err))
	}
	if err := p.sessions.HandleStatus(ctx, MapStatus(report.Status), report.File); err != nil {
		p.logger.Warn("status handling failed", zap.Error(err))
	}
}

// MapStatus normalizes the printer's raw status string to a device status.
// Unknown values map through unchanged and are ignored downstream.
func MapStatus(raw string) domsession.Status {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "error":
		return domsession.StatusErrored
	case "canceled":
		return domsession.StatusCancelled
	default:
		return domsession.Status(s)
	}
}
