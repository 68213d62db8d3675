package domain

// SpoolNone means no spool is selected to receive usage.
const SpoolNone = 0

// Selector is the process-wide selection state: which spool receives usage
// deltas and whether tracking is enabled at all. Explicit zero value is the
// required initial state (no active spool, tracking off).
type Selector struct {
	ActiveSpoolID   int
	TrackingEnabled bool
}

// HasActive reports whether a spool is selected.
func (s Selector) HasActive() bool { return s.ActiveSpoolID != SpoolNone }

// Tracks reports whether usage deltas should currently be attributed.
func (s Selector) Tracks() bool { return s.TrackingEnabled && s.HasActive() }
