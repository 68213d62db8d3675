// Package tracker turns the printer's noisy cumulative extrusion counter
// into incremental consumption on the active spool. The monitor half computes
// and validates deltas; the allocator half applies them.
package tracker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/spooltrack/internal/domain"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
	"github.com/kailas-cloud/spooltrack/internal/metrics"
)

// DefaultSanityCeilingMM is the largest delta accepted from a single tick.
// Anything above is treated as a counter reset or spurious spike.
const DefaultSanityCeilingMM = 50000

// Service is the telemetry monitor and usage allocator.
type Service struct {
	mu          sync.Mutex
	registry    Registry
	counters    CounterStore
	logger      *zap.Logger
	ceilingMM   float64
	prevRaw     float64
	initialized bool
}

// New creates a tracker (ceiling <=0 uses DefaultSanityCeilingMM).
func New(registry Registry, counters CounterStore, ceilingMM float64, logger *zap.Logger) *Service {
	if ceilingMM <= 0 {
		ceilingMM = DefaultSanityCeilingMM
	}
	return &Service{
		registry:  registry,
		counters:  counters,
		logger:    logger,
		ceilingMM: ceilingMM,
	}
}

// Load restores the persisted raw counter so the gap accumulated while the
// process was down is never attributed as consumption.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.counters.LoadCounter(ctx)
	if err != nil {
		return fmt.Errorf("load counter: %w", err)
	}
	if ok {
		s.prevRaw = raw
		s.initialized = true
	}
	return nil
}

// Observe processes one observation of the raw cumulative counter.
// The previous value always resyncs to the current one, even while tracking
// is disabled, so re-enabling tracking never attributes a stale delta.
// Anomalies are logged, never returned; a returned error is a persistence
// failure and the tick loop treats it as non-fatal.
func (s *Service) Observe(ctx context.Context, raw float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		s.initialized = true
		s.prevRaw = raw
		s.persistCounter(ctx, raw)
		metrics.TelemetryTicksTotal.WithLabelValues("discarded").Inc()
		return nil
	}

	delta := raw - s.prevRaw
	prev := s.prevRaw
	s.prevRaw = raw
	s.persistCounter(ctx, raw)

	if delta < 0 || delta > s.ceilingMM {
		resetErr := &domain.CounterResetError{Previous: prev, Current: raw}
		s.logger.Warn("telemetry anomaly, tick discarded",
			zap.Float64("previous_mm", prev),
			zap.Float64("current_mm", raw),
			zap.Float64("delta_mm", delta),
			zap.Error(resetErr))
		metrics.TelemetryTicksTotal.WithLabelValues("anomaly").Inc()
		metrics.TelemetryAnomaliesTotal.Inc()
		return nil
	}
	if delta == 0 {
		metrics.TelemetryTicksTotal.WithLabelValues("discarded").Inc()
		return nil
	}

	sel := s.registry.Selector()
	if !sel.Tracks() {
		// No caller to surface ErrNoActiveSpool to; drop silently.
		metrics.TelemetryTicksTotal.WithLabelValues("discarded").Inc()
		return nil
	}

	if err := s.Apply(ctx, sel.ActiveSpoolID, delta); err != nil {
		return fmt.Errorf("apply delta: %w", err)
	}
	metrics.TelemetryTicksTotal.WithLabelValues("applied").Inc()
	return nil
}

// Apply attributes a validated consumption delta to a spool. A locked spool
// or a cleared selection makes this a logged no-op, never an error.
func (s *Service) Apply(ctx context.Context, id int, deltaMM float64) error {
	if id == domain.SpoolNone {
		s.logger.Debug("usage delta with no spool selected, dropped",
			zap.Float64("delta_mm", deltaMM))
		return nil
	}
	if deltaMM <= 0 {
		return nil
	}

	var applied bool
	var emptied bool
	updated, err := s.registry.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		if sp.Locked() {
			return sp, nil
		}
		wasEmpty := sp.IsEmpty()
		sp = sp.ApplyUsage(deltaMM)
		applied = true
		emptied = !wasEmpty && sp.IsEmpty()
		return sp, nil
	})
	if err != nil {
		return err
	}

	if !applied {
		s.logger.Info("usage delta on locked spool, dropped",
			zap.Int("spool_id", id),
			zap.Float64("delta_mm", deltaMM))
		return nil
	}

	metrics.FilamentUsedMM.WithLabelValues(fmt.Sprint(id)).Add(deltaMM)
	s.logger.Debug("usage applied",
		zap.Int("spool_id", id),
		zap.Float64("delta_mm", deltaMM),
		zap.Float64("used_mm", updated.UsedLengthMM()),
		zap.Float64("remaining_mm", updated.RemainingLengthMM()))

	if emptied {
		// Reported only; nothing is auto-acted on.
		s.logger.Warn("spool ran empty",
			zap.Int("spool_id", id),
			zap.Float64("initial_mm", updated.InitialLengthMM()),
			zap.Float64("used_mm", updated.UsedLengthMM()))
	}
	return nil
}

// persistCounter is best-effort: losing one write only widens the restart
// resync window by a single tick.
func (s *Service) persistCounter(ctx context.Context, raw float64) {
	if err := s.counters.SaveCounter(ctx, raw); err != nil {
		s.logger.Warn("failed to persist telemetry counter", zap.Error(err))
	}
}
