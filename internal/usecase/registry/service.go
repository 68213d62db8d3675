// Package registry owns the fixed set of spool slots and the process-wide
// selection state. Every mutation in the engine funnels through its single
// mutex: with at most four spools a global lock is cheaper than per-spool
// locks and gives the same per-spool atomicity guarantee. Writes go through
// to the repository inside the critical section, so no two mutations of one
// spool can interleave across the store round-trip.
package registry

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/spooltrack/internal/domain"
	"github.com/kailas-cloud/spooltrack/internal/domain/material"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
)

// DefaultSlots is the standard slot count.
const DefaultSlots = 4

// Service holds the spool slots and selection state.
type Service struct {
	mu       sync.Mutex
	repo     Repository
	logger   *zap.Logger
	slots    int
	spools   map[int]domspool.Spool
	selector domain.Selector
}

// New creates a registry service for the given slot count (<=0 uses
// DefaultSlots). Call Load before use.
func New(repo Repository, slots int, logger *zap.Logger) *Service {
	if slots <= 0 {
		slots = DefaultSlots
	}
	return &Service{
		repo:   repo,
		logger: logger,
		slots:  slots,
		spools: make(map[int]domspool.Spool, slots),
	}
}

// Load hydrates spools and selector from storage. Slots never persisted come
// back unconfigured; a missing selector record means no active spool and
// tracking off.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if has, err := s.repo.HasState(ctx); err != nil {
		s.logger.Warn("could not probe persisted state", zap.Error(err))
	} else if !has {
		s.logger.Info("no persisted state, starting fresh")
	}

	ids := s.slotIDs()
	spools, err := s.repo.ListSpools(ctx, ids)
	if err != nil {
		return fmt.Errorf("load spools: %w", err)
	}
	for _, sp := range spools {
		s.spools[sp.ID()] = sp
	}

	sel, err := s.repo.GetSelector(ctx)
	if err != nil {
		return fmt.Errorf("load selector: %w", err)
	}
	if sel.ActiveSpoolID != domain.SpoolNone && (sel.ActiveSpoolID < 1 || sel.ActiveSpoolID > s.slots) {
		s.logger.Warn("persisted selector points at an unknown slot, clearing",
			zap.Int("spool_id", sel.ActiveSpoolID))
		sel.ActiveSpoolID = domain.SpoolNone
	}
	s.selector = sel

	// Spool hashes beyond the slot count linger after the config shrinks;
	// they get the same treatment as the out-of-range selector above.
	pruned, err := s.repo.PruneStaleSlots(ctx, s.slots)
	if err != nil {
		s.logger.Warn("could not prune stale spool slots", zap.Error(err))
	} else if len(pruned) > 0 {
		s.logger.Info("pruned stale spool slots", zap.Ints("slots", pruned))
	}
	return nil
}

// Slots returns the slot count.
func (s *Service) Slots() int { return s.slots }

// Spool returns a copy of one slot.
func (s *Service) Spool(id int) (domspool.Spool, error) {
	if err := s.validateID(id); err != nil {
		return domspool.Spool{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spools[id], nil
}

// Spools returns copies of all slots in slot order.
func (s *Service) Spools() []domspool.Spool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domspool.Spool, 0, s.slots)
	for _, id := range s.slotIDs() {
		out = append(out, s.spools[id])
	}
	return out
}

// Selector returns the current selection state.
func (s *Service) Selector() domain.Selector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector
}

// SelectActiveSpool designates the spool that receives usage deltas.
// domain.SpoolNone clears the selection.
func (s *Service) SelectActiveSpool(ctx context.Context, id int) error {
	if id != domain.SpoolNone {
		if err := s.validateID(id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.selector
	sel.ActiveSpoolID = id
	if err := s.repo.SaveSelector(ctx, sel); err != nil {
		return fmt.Errorf("save selector: %w", err)
	}
	s.selector = sel
	s.logger.Info("active spool changed", zap.Int("spool_id", id))
	return nil
}

// SetTrackingEnabled flips the tracking switch.
func (s *Service) SetTrackingEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.selector
	sel.TrackingEnabled = enabled
	if err := s.repo.SaveSelector(ctx, sel); err != nil {
		return fmt.Errorf("save selector: %w", err)
	}
	s.selector = sel
	s.logger.Info("tracking toggled", zap.Bool("enabled", enabled))
	return nil
}

// Mutate applies fn to one spool under the engine lock and persists the
// result. The tracker, session tracker and undo engine all mutate through
// here so telemetry ticks, window commits and user commands serialize.
func (s *Service) Mutate(ctx context.Context, id int, fn func(domspool.Spool) (domspool.Spool, error)) (domspool.Spool, error) {
	if err := s.validateID(id); err != nil {
		return domspool.Spool{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := fn(s.spools[id])
	if err != nil {
		return domspool.Spool{}, err
	}
	if err := s.repo.SaveSpool(ctx, updated); err != nil {
		return domspool.Spool{}, fmt.Errorf("save spool %d: %w", id, err)
	}
	s.spools[id] = updated
	return updated, nil
}

// SetName renames a spool. Rejected while locked.
func (s *Service) SetName(ctx context.Context, id int, name string) error {
	_, err := s.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		return sp.WithName(name)
	})
	return err
}

// SetMaterial sets a spool's material; the density override is dropped so
// the material's standard density applies.
func (s *Service) SetMaterial(ctx context.Context, id int, mat material.Material) error {
	_, err := s.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		return sp.WithMaterial(mat)
	})
	return err
}

// SetDensity sets a per-spool density override in g/cm³ (0 clears it).
func (s *Service) SetDensity(ctx context.Context, id int, density float64) error {
	_, err := s.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		return sp.WithDensityOverride(density)
	})
	return err
}

// SetDiameter sets the filament diameter in mm.
func (s *Service) SetDiameter(ctx context.Context, id int, diameterMM float64) error {
	_, err := s.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		return sp.WithDiameter(diameterMM)
	})
	return err
}

// SetWeight sizes the roll by weight in grams; initial length is derived
// from density and diameter and the usage counter resets for the fresh roll.
func (s *Service) SetWeight(ctx context.Context, id int, grams float64) error {
	_, err := s.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		return sp.WithWeight(grams)
	})
	return err
}

// SetLength sets the roll length directly in mm.
func (s *Service) SetLength(ctx context.Context, id int, lengthMM float64) error {
	_, err := s.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		return sp.WithInitialLength(lengthMM)
	})
	return err
}

// SetLock sets the lock flag. Always permitted, locked or not.
func (s *Service) SetLock(ctx context.Context, id int, locked bool) error {
	_, err := s.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		return sp.WithLock(locked), nil
	})
	return err
}

// ResetSpool clears usage and last-print fields and unlocks the slot in one
// atomic step. Configuration persists.
func (s *Service) ResetSpool(ctx context.Context, id int) error {
	_, err := s.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		return sp.Reset(), nil
	})
	if err == nil {
		s.logger.Info("spool reset", zap.Int("spool_id", id))
	}
	return err
}

// MarkEmptyQuickReload reloads the slot with a fresh roll of the same
// configuration in one atomic step.
func (s *Service) MarkEmptyQuickReload(ctx context.Context, id int) error {
	_, err := s.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		return sp.QuickReload(), nil
	})
	if err == nil {
		s.logger.Info("spool quick-reloaded", zap.Int("spool_id", id))
	}
	return err
}

// SetupSpool is the one-shot configuration wizard: name + material + weight,
// optionally locking afterwards. Refused unless the slot is ready or empty,
// so an in-use spool is never overwritten. The whole sequence runs under one
// lock acquisition; no intermediate unlocked state is observable.
func (s *Service) SetupSpool(ctx context.Context, id int, name string, mat material.Material, grams float64, autoLock bool) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	active := s.Selector().ActiveSpoolID == id

	_, err := s.Mutate(ctx, id, func(sp domspool.Spool) (domspool.Spool, error) {
		if st := sp.State(active); st != domspool.StateReady && st != domspool.StateEmpty {
			return sp, fmt.Errorf("%w: slot %d is %s", domain.ErrSpoolInUse, id, st)
		}
		sp = sp.WithLock(false)
		sp, err := sp.WithName(name)
		if err != nil {
			return sp, err
		}
		sp, err = sp.WithMaterial(mat)
		if err != nil {
			return sp, err
		}
		sp, err = sp.WithWeight(grams)
		if err != nil {
			return sp, err
		}
		return sp.WithLock(autoLock), nil
	})
	if err == nil {
		s.logger.Info("spool configured",
			zap.Int("spool_id", id),
			zap.String("name", name),
			zap.String("material", string(mat)),
			zap.Float64("weight_g", grams),
			zap.Bool("locked", autoLock))
	}
	return err
}

func (s *Service) validateID(id int) error {
	if id < 1 || id > s.slots {
		return fmt.Errorf("%w: spool id %d out of range 1..%d", domain.ErrInvalidInput, id, s.slots)
	}
	return nil
}

func (s *Service) slotIDs() []int {
	ids := make([]int, s.slots)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}
