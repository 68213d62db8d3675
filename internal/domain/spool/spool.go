// Package spool holds the Spool aggregate: one physical filament roll in a
// numbered slot, its usage counters, lock, last-print fields and history
// ledger. Value semantics throughout: mutators return an updated copy, the
// registry service serializes and persists them.
package spool

import (
	"fmt"

	"github.com/kailas-cloud/spooltrack/internal/domain"
	"github.com/kailas-cloud/spooltrack/internal/domain/filament"
	"github.com/kailas-cloud/spooltrack/internal/domain/history"
	"github.com/kailas-cloud/spooltrack/internal/domain/material"
)

// State is the spool lifecycle state.
type State string

// Lifecycle states.
const (
	// StateReady means the slot was never configured.
	StateReady State = "ready"
	// StateConfigured means the spool carries a configuration but is not selected.
	StateConfigured State = "configured"
	// StateActive means the spool is the current usage target.
	StateActive State = "active"
	// StateEmpty means usage has reached or passed the initial length.
	StateEmpty State = "empty"
)

// Spool is a single tracked filament roll.
type Spool struct {
	id              int
	name            string
	mat             material.Material
	densityOverride float64 // 0 = use material density
	diameterMM      float64
	initialLengthMM float64
	usedLengthMM    float64
	locked          bool
	lastPrintLenMM  float64
	lastPrintWtG    float64
	ledger          history.Ledger
}

// New creates an unconfigured spool for a slot.
func New(id int, historyCap int) Spool {
	return Spool{
		id:         id,
		mat:        material.Custom,
		diameterMM: filament.DefaultDiameter,
		ledger:     history.NewLedger(historyCap),
	}
}

// Reconstruct creates a Spool without validation (storage hydration).
func Reconstruct(
	id int, name string, mat material.Material,
	densityOverride, diameterMM, initialLengthMM, usedLengthMM float64,
	locked bool, lastPrintLenMM, lastPrintWtG float64,
	ledger history.Ledger,
) Spool {
	if !mat.IsValid() {
		mat = material.Custom
	}
	if diameterMM <= 0 {
		diameterMM = filament.DefaultDiameter
	}
	return Spool{
		id:              id,
		name:            name,
		mat:             mat,
		densityOverride: densityOverride,
		diameterMM:      diameterMM,
		initialLengthMM: initialLengthMM,
		usedLengthMM:    usedLengthMM,
		locked:          locked,
		lastPrintLenMM:  lastPrintLenMM,
		lastPrintWtG:    lastPrintWtG,
		ledger:          ledger,
	}
}

// ID returns the slot number (1..4).
func (s Spool) ID() int { return s.id }

// Name returns the user-assigned spool name.
func (s Spool) Name() string { return s.name }

// Material returns the filament material.
func (s Spool) Material() material.Material { return s.mat }

// DensityOverride returns the per-spool density override (0 = none).
func (s Spool) DensityOverride() float64 { return s.densityOverride }

// Density returns the effective density: the override when set, otherwise the
// material's standard density.
func (s Spool) Density() float64 {
	if s.densityOverride > 0 {
		return s.densityOverride
	}
	return s.mat.Density()
}

// DiameterMM returns the filament diameter in mm.
func (s Spool) DiameterMM() float64 { return s.diameterMM }

// InitialLengthMM returns the configured roll length in mm.
func (s Spool) InitialLengthMM() float64 { return s.initialLengthMM }

// UsedLengthMM returns the consumed length in mm.
func (s Spool) UsedLengthMM() float64 { return s.usedLengthMM }

// Locked reports whether configuration mutations are rejected.
func (s Spool) Locked() bool { return s.locked }

// LastPrintLengthMM returns the length of the last committed print window.
func (s Spool) LastPrintLengthMM() float64 { return s.lastPrintLenMM }

// LastPrintWeightG returns the weight of the last committed print window.
func (s Spool) LastPrintWeightG() float64 { return s.lastPrintWtG }

// Ledger returns the spool's history ledger.
func (s Spool) Ledger() history.Ledger { return s.ledger }

// RemainingLengthMM returns max(0, initial − used).
func (s Spool) RemainingLengthMM() float64 {
	if r := s.initialLengthMM - s.usedLengthMM; r > 0 {
		return r
	}
	return 0
}

// RemainingWeightG returns the remaining weight in grams.
func (s Spool) RemainingWeightG() float64 {
	return filament.WeightG(s.RemainingLengthMM(), s.diameterMM, s.Density())
}

// InitialWeightG returns the configured roll weight in grams.
func (s Spool) InitialWeightG() float64 {
	return filament.WeightG(s.initialLengthMM, s.diameterMM, s.Density())
}

// UsedWeightG returns the consumed weight in grams.
func (s Spool) UsedWeightG() float64 {
	return filament.WeightG(s.usedLengthMM, s.diameterMM, s.Density())
}

// PercentRemaining returns the remaining share of the roll, 0..100.
func (s Spool) PercentRemaining() float64 {
	if s.initialLengthMM <= 0 {
		return 0
	}
	return s.RemainingLengthMM() / s.initialLengthMM * 100
}

// IsEmpty reports whether usage has reached the configured length.
func (s Spool) IsEmpty() bool {
	return s.initialLengthMM > 0 && s.usedLengthMM >= s.initialLengthMM
}

// IsConfigured reports whether the slot has ever been set up.
func (s Spool) IsConfigured() bool {
	return s.name != "" || s.initialLengthMM > 0
}

// State derives the lifecycle state. active is whether this spool is the
// current selection.
func (s Spool) State(active bool) State {
	switch {
	case s.IsEmpty():
		return StateEmpty
	case active:
		return StateActive
	case s.IsConfigured():
		return StateConfigured
	default:
		return StateReady
	}
}

// checkUnlocked guards configuration mutations. The lock flag itself and
// usage accounting (allocator, undo) are exempt.
func (s Spool) checkUnlocked() error {
	if s.locked {
		return domain.ErrLocked
	}
	return nil
}

// WithName sets the spool name.
func (s Spool) WithName(name string) (Spool, error) {
	if err := s.checkUnlocked(); err != nil {
		return s, err
	}
	s.name = name
	return s, nil
}

// WithMaterial sets the material and drops any density override, so the
// material's standard density takes effect.
func (s Spool) WithMaterial(mat material.Material) (Spool, error) {
	if err := s.checkUnlocked(); err != nil {
		return s, err
	}
	if !mat.IsValid() {
		return s, fmt.Errorf("%w: unknown material %q", domain.ErrInvalidInput, mat)
	}
	s.mat = mat
	s.densityOverride = 0
	return s, nil
}

// WithDensityOverride sets a per-spool density in g/cm³ (0 clears it).
func (s Spool) WithDensityOverride(density float64) (Spool, error) {
	if err := s.checkUnlocked(); err != nil {
		return s, err
	}
	if density < 0 {
		return s, fmt.Errorf("%w: density must be non-negative", domain.ErrInvalidInput)
	}
	s.densityOverride = density
	return s, nil
}

// WithDiameter sets the filament diameter in mm.
func (s Spool) WithDiameter(diameterMM float64) (Spool, error) {
	if err := s.checkUnlocked(); err != nil {
		return s, err
	}
	if diameterMM <= 0 {
		return s, fmt.Errorf("%w: diameter must be positive", domain.ErrInvalidInput)
	}
	s.diameterMM = diameterMM
	return s, nil
}

// WithInitialLength sets the roll length directly in mm.
func (s Spool) WithInitialLength(lengthMM float64) (Spool, error) {
	if err := s.checkUnlocked(); err != nil {
		return s, err
	}
	if lengthMM < 0 {
		return s, fmt.Errorf("%w: length must be non-negative", domain.ErrInvalidInput)
	}
	s.initialLengthMM = lengthMM
	return s, nil
}

// WithWeight sets the roll size by weight in grams; the initial length is
// derived from the effective density and diameter, and the usage counter is
// reset for the fresh roll. Length and weight writes target the same field:
// the last write wins.
func (s Spool) WithWeight(grams float64) (Spool, error) {
	if err := s.checkUnlocked(); err != nil {
		return s, err
	}
	if grams <= 0 {
		return s, fmt.Errorf("%w: weight must be positive", domain.ErrInvalidInput)
	}
	s.initialLengthMM = filament.LengthMM(grams, s.diameterMM, s.Density())
	s.usedLengthMM = 0
	return s, nil
}

// WithLock sets the lock flag. Always permitted.
func (s Spool) WithLock(locked bool) Spool {
	s.locked = locked
	return s
}

// ApplyUsage adds a non-negative consumption delta in mm. Lock handling is
// the allocator's concern; the aggregate only keeps the counter monotonic.
func (s Spool) ApplyUsage(deltaMM float64) Spool {
	if deltaMM > 0 {
		s.usedLengthMM += deltaMM
	}
	return s
}

// ReduceUsed subtracts a length from the usage counter, clamping at zero.
// clamped is true when recorded history exceeded the counter, meaning ledger
// and physical state have diverged.
func (s Spool) ReduceUsed(lengthMM float64) (_ Spool, clamped bool) {
	s.usedLengthMM -= lengthMM
	if s.usedLengthMM < 0 {
		s.usedLengthMM = 0
		clamped = true
	}
	return s, clamped
}

// WithLastPrint records the last committed window on the spool.
func (s Spool) WithLastPrint(lengthMM, weightG float64) Spool {
	s.lastPrintLenMM = lengthMM
	s.lastPrintWtG = weightG
	return s
}

// ClearLastPrint zeroes the last print fields.
func (s Spool) ClearLastPrint() Spool {
	s.lastPrintLenMM = 0
	s.lastPrintWtG = 0
	return s
}

// AppendHistory commits an entry to the ledger.
func (s Spool) AppendHistory(e history.Entry) Spool {
	s.ledger = s.ledger.Append(e)
	return s
}

// RevertHistory marks a ledger entry reverted, returning the entry as it was
// before the flip.
func (s Spool) RevertHistory(entryID string) (Spool, history.Entry, error) {
	ledger, entry, err := s.ledger.Revert(entryID)
	if err != nil {
		return s, history.Entry{}, err
	}
	s.ledger = ledger
	return s, entry, nil
}

// Reset clears usage and last-print fields and unlocks the slot. Name,
// material and initial length persist.
func (s Spool) Reset() Spool {
	s.usedLengthMM = 0
	s.locked = false
	return s.ClearLastPrint()
}

// QuickReload swaps in a fresh roll of the same configuration in one atomic
// step: the current name/material/length are snapshotted, usage and last-print
// fields reset, the slot unlocked, and the snapshot re-applied. No
// intermediate unlocked-and-unconfigured state is ever observable.
func (s Spool) QuickReload() Spool {
	name, mat, override, initial := s.name, s.mat, s.densityOverride, s.initialLengthMM
	s = s.Reset()
	s.name = name
	s.mat = mat
	s.densityOverride = override
	s.initialLengthMM = initial
	return s
}
