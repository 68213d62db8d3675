// Package history is the bounded append-mostly ledger of completed
// consumption windows kept per spool.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/spooltrack/internal/domain"
	"github.com/kailas-cloud/spooltrack/internal/domain/material"
)

// DefaultCap is the default maximum number of ledger entries per spool.
const DefaultCap = 50

// Entry is one committed print window. Immutable except the reverted flag,
// which flips once via Ledger.Revert. Entries are identified by UUID so a
// targeted undo never depends on a position that FIFO eviction could shift.
type Entry struct {
	id        string
	timestamp int64 // unix millis
	file      string
	material  material.Material
	lengthMM  float64
	weightG   float64
	reverted  bool
}

// NewEntry creates a ledger entry for a committed print window.
func NewEntry(file string, mat material.Material, lengthMM, weightG float64) Entry {
	return Entry{
		id:        uuid.NewString(),
		timestamp: time.Now().UnixMilli(),
		file:      file,
		material:  mat,
		lengthMM:  lengthMM,
		weightG:   weightG,
	}
}

// ReconstructEntry creates an Entry without validation (storage hydration).
func ReconstructEntry(
	id string, timestamp int64, file string,
	mat material.Material, lengthMM, weightG float64, reverted bool,
) Entry {
	return Entry{
		id:        id,
		timestamp: timestamp,
		file:      file,
		material:  mat,
		lengthMM:  lengthMM,
		weightG:   weightG,
		reverted:  reverted,
	}
}

// ID returns the stable entry identity.
func (e Entry) ID() string { return e.id }

// Timestamp returns the commit time (unix millis).
func (e Entry) Timestamp() int64 { return e.timestamp }

// File returns the print file label, if the printer reported one.
func (e Entry) File() string { return e.file }

// Material returns the material the window was printed with.
func (e Entry) Material() material.Material { return e.material }

// LengthMM returns the consumed length in mm.
func (e Entry) LengthMM() float64 { return e.lengthMM }

// WeightG returns the consumed weight in grams, derived at commit time.
func (e Entry) WeightG() float64 { return e.weightG }

// Reverted reports whether the entry's effect has been undone.
func (e Entry) Reverted() bool { return e.reverted }

// Ledger is a bounded ordered log, oldest entry first. Value semantics:
// mutating operations return an updated copy.
type Ledger struct {
	cap     int
	entries []Entry
}

// NewLedger creates an empty ledger with the given cap (<=0 uses DefaultCap).
func NewLedger(capacity int) Ledger {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return Ledger{cap: capacity}
}

// ReconstructLedger creates a ledger from stored entries.
func ReconstructLedger(capacity int, entries []Entry) Ledger {
	l := NewLedger(capacity)
	for _, e := range entries {
		l = l.Append(e)
	}
	return l
}

// Cap returns the maximum entry count.
func (l Ledger) Cap() int { return l.cap }

// Len returns the current entry count.
func (l Ledger) Len() int { return len(l.entries) }

// Entries returns the entries oldest-first.
func (l Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Append pushes an entry to the tail, evicting the oldest entry when the cap
// would be exceeded.
func (l Ledger) Append(e Entry) Ledger {
	entries := make([]Entry, len(l.entries), len(l.entries)+1)
	copy(entries, l.entries)
	entries = append(entries, e)
	if len(entries) > l.cap {
		entries = entries[len(entries)-l.cap:]
	}
	return Ledger{cap: l.cap, entries: entries}
}

// Latest returns the newest entry whose effect is still applied.
func (l Ledger) Latest() (Entry, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if !l.entries[i].reverted {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}

// ByID looks up an entry by identity.
func (l Ledger) ByID(id string) (Entry, bool) {
	for _, e := range l.entries {
		if e.id == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Revert marks the identified entry as reverted and returns the updated
// ledger plus the entry as it was before the flip. The entry stays in the
// ledger for audit. Returns domain.ErrNoHistory if the entry is missing or
// already reverted.
func (l Ledger) Revert(id string) (Ledger, Entry, error) {
	for i, e := range l.entries {
		if e.id != id {
			continue
		}
		if e.reverted {
			return l, Entry{}, domain.ErrNoHistory
		}
		entries := make([]Entry, len(l.entries))
		copy(entries, l.entries)
		entries[i].reverted = true
		return Ledger{cap: l.cap, entries: entries}, e, nil
	}
	return l, Entry{}, domain.ErrNoHistory
}
