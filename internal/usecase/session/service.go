// Package session brackets one consumption window per print. The state
// machine only reacts to status *transitions*, so a poll loop reporting the
// same status every tick never reopens or re-commits a window, and a
// transition with no matching prior state is a tolerated no-op.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/spooltrack/internal/domain/filament"
	"github.com/kailas-cloud/spooltrack/internal/domain/history"
	domsession "github.com/kailas-cloud/spooltrack/internal/domain/session"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
	"github.com/kailas-cloud/spooltrack/internal/metrics"
)

// Service tracks the device status and the at-most-one open print session.
type Service struct {
	mu       sync.Mutex
	registry Registry
	logger   *zap.Logger
	last     domsession.Status
	open     *domsession.PrintSession
}

// New creates a print session tracker.
func New(registry Registry, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		logger:   logger,
		last:     domsession.StatusIdle,
	}
}

// Snapshot returns the open session, if any.
func (s *Service) Snapshot() (domsession.PrintSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return domsession.PrintSession{}, false
	}
	return *s.open, true
}

// HandleStatus feeds one observed device status into the state machine.
// file is the printer's currently reported file name, captured when a window
// opens. Usage itself is applied live by the allocator; window close only
// measures the net delta and commits it to the ledger.
func (s *Service) HandleStatus(ctx context.Context, status domsession.Status, file string) error {
	if !status.IsValid() {
		s.logger.Debug("unknown device status ignored", zap.String("status", string(status)))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.last
	s.last = status

	entering := status == domsession.StatusPrinting && prev != domsession.StatusPrinting
	leaving := prev == domsession.StatusPrinting && status != domsession.StatusPrinting

	switch {
	case entering:
		s.openWindow(file)
	case leaving:
		return s.closeWindow(ctx, status)
	}
	return nil
}

// openWindow opens a session against the active spool. A session already
// open means the device restarted without finishing: the old window is
// discarded, never committed, and the baseline re-anchors to current usage.
func (s *Service) openWindow(file string) {
	sel := s.registry.Selector()
	if !sel.Tracks() {
		s.logger.Debug("print started but tracking is off or no spool selected")
		return
	}

	sp, err := s.registry.Spool(sel.ActiveSpoolID)
	if err != nil {
		s.logger.Warn("print started on unknown spool", zap.Int("spool_id", sel.ActiveSpoolID), zap.Error(err))
		return
	}

	if s.open != nil {
		s.logger.Warn("print restarted with a window still open, discarding it",
			zap.Int("spool_id", s.open.SpoolID()),
			zap.Float64("baseline_mm", s.open.Baseline()))
	}

	sess := domsession.New(sel.ActiveSpoolID, sp.UsedLengthMM(), file)
	s.open = &sess
	s.logger.Info("print window opened",
		zap.Int("spool_id", sess.SpoolID()),
		zap.Float64("baseline_mm", sess.Baseline()),
		zap.String("file", file))
}

// closeWindow ends the open session. Completed and Errored commit the window
// to the ledger; Cancelled (and any other exit) discards it — usage already
// applied to the counter stays, it just is not separately logged.
func (s *Service) closeWindow(ctx context.Context, status domsession.Status) error {
	if s.open == nil {
		return nil
	}
	sess := *s.open
	s.open = nil

	if !status.Commits() {
		s.logger.Info("print window closed without commit",
			zap.Int("spool_id", sess.SpoolID()),
			zap.String("status", string(status)))
		return nil
	}

	var entry history.Entry
	var committed bool
	_, err := s.registry.Mutate(ctx, sess.SpoolID(), func(sp domspool.Spool) (domspool.Spool, error) {
		delta := sp.UsedLengthMM() - sess.Baseline()
		if delta <= 0 {
			return sp, nil
		}
		weight := filament.WeightG(delta, sp.DiameterMM(), sp.Density())
		entry = history.NewEntry(sess.File(), sp.Material(), delta, weight)
		committed = true
		return sp.AppendHistory(entry).WithLastPrint(delta, weight), nil
	})
	if err != nil {
		return fmt.Errorf("commit print window: %w", err)
	}

	if !committed {
		s.logger.Info("print window closed with no usage, nothing committed",
			zap.Int("spool_id", sess.SpoolID()),
			zap.String("status", string(status)))
		return nil
	}

	metrics.PrintsCommittedTotal.WithLabelValues(fmt.Sprint(sess.SpoolID()), string(status)).Inc()
	s.logger.Info("print window committed",
		zap.Int("spool_id", sess.SpoolID()),
		zap.String("status", string(status)),
		zap.String("file", sess.File()),
		zap.Float64("length_mm", entry.LengthMM()),
		zap.Float64("weight_g", entry.WeightG()))
	return nil
}
