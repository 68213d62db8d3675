// Package undo reverses the effect of one history ledger entry on a spool's
// usage counter. Undo is a corrective action, not configuration: it is
// deliberately exempt from the spool lock.
package undo

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/spooltrack/internal/domain"
	"github.com/kailas-cloud/spooltrack/internal/domain/history"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
	"github.com/kailas-cloud/spooltrack/internal/metrics"
)

// Registry is the consumer interface into the spool registry.
type Registry interface {
	Mutate(ctx context.Context, id int, fn func(domspool.Spool) (domspool.Spool, error)) (domspool.Spool, error)
}

// Service is the undo engine.
type Service struct {
	mu       sync.Mutex
	registry Registry
	logger   *zap.Logger
}

// New creates an undo engine.
func New(registry Registry, logger *zap.Logger) *Service {
	return &Service{registry: registry, logger: logger}
}

// UndoLast reverts the newest entry whose effect is still applied. Two
// consecutive calls revert two successively older entries, never the same
// one twice. Returns domain.ErrNoHistory when nothing is eligible.
func (s *Service) UndoLast(ctx context.Context, id int) (history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revert(ctx, id, func(sp domspool.Spool) (string, error) {
		latest, ok := sp.Ledger().Latest()
		if !ok {
			return "", domain.ErrNoHistory
		}
		return latest.ID(), nil
	})
}

// UndoEntry reverts a named entry, wherever it sits in the ledger. Identical
// accounting rules to UndoLast. Returns domain.ErrNoHistory when the entry
// is missing or already reverted.
func (s *Service) UndoEntry(ctx context.Context, id int, entryID string) (history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID == "" {
		return history.Entry{}, fmt.Errorf("%w: entry id is required", domain.ErrInvalidInput)
	}
	return s.revert(ctx, id, func(domspool.Spool) (string, error) {
		return entryID, nil
	})
}

// revert flips one entry to reverted and subtracts its length from the usage
// counter, clamped at zero. The entry stays in the ledger for audit. When the
// reverted entry is the newest one, the spool's last-print fields are cleared
// as well, since they mirror exactly that entry.
func (s *Service) revert(ctx context.Context, id int, pick func(domspool.Spool) (string, error)) (history.Entry, error) {
	var reverted history.Entry
	var clamped bool

	_, err := s.registry.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		entryID, err := pick(sp)
		if err != nil {
			return sp, err
		}

		newest, _ := newestEntry(sp)

		sp, entry, err := sp.RevertHistory(entryID)
		if err != nil {
			return sp, err
		}
		reverted = entry

		sp, clamped = sp.ReduceUsed(entry.LengthMM())
		if entry.ID() == newest {
			sp = sp.ClearLastPrint()
		}
		return sp, nil
	})
	if err != nil {
		return history.Entry{}, err
	}

	if clamped {
		// Ledger and physical counter have parted ways; the counter is
		// clamped at zero and the gap is only reported.
		s.logger.Warn("undo clamped used length at zero, history and state diverged",
			zap.Int("spool_id", id),
			zap.String("entry_id", reverted.ID()),
			zap.Float64("entry_length_mm", reverted.LengthMM()))
	}

	metrics.UndoTotal.WithLabelValues(fmt.Sprint(id)).Inc()
	s.logger.Info("history entry reverted",
		zap.Int("spool_id", id),
		zap.String("entry_id", reverted.ID()),
		zap.String("file", reverted.File()),
		zap.Float64("length_mm", reverted.LengthMM()))
	return reverted, nil
}

func newestEntry(sp domspool.Spool) (string, bool) {
	entries := sp.Ledger().Entries()
	if len(entries) == 0 {
		return "", false
	}
	return entries[len(entries)-1].ID(), true
}
