// Package session models the printer status signal and the transient print
// window bracketed by it.
package session

import "time"

// Status is the device status mapped from the printer's raw state.
type Status string

// Device statuses.
const (
	StatusIdle      Status = "idle"
	StatusPrinting  Status = "printing"
	StatusCompleted Status = "completed"
	StatusErrored   Status = "errored"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is one of the known device states.
func (s Status) IsValid() bool {
	switch s {
	case StatusIdle, StatusPrinting, StatusCompleted, StatusErrored, StatusCancelled:
		return true
	}
	return false
}

// Commits reports whether leaving a print window in this status commits the
// window to the history ledger. A cancelled window is deliberately discarded.
func (s Status) Commits() bool {
	return s == StatusCompleted || s == StatusErrored
}

// PrintSession is one open consumption window. At most one exists at a time;
// it is created when the device enters printing and consumed into a history
// entry (or discarded) when it leaves.
type PrintSession struct {
	spoolID  int
	baseline float64 // used length of the spool at window open, mm
	file     string
	startAt  time.Time
}

// New opens a print session against the given spool.
func New(spoolID int, baselineUsedMM float64, file string) PrintSession {
	return PrintSession{
		spoolID:  spoolID,
		baseline: baselineUsedMM,
		file:     file,
		startAt:  time.Now(),
	}
}

// SpoolID returns the spool the window is charged to.
func (p PrintSession) SpoolID() int { return p.spoolID }

// Baseline returns the spool's used length at window open, in mm.
func (p PrintSession) Baseline() float64 { return p.baseline }

// File returns the print file label captured at window open.
func (p PrintSession) File() string { return p.file }

// StartAt returns the window open time.
func (p PrintSession) StartAt() time.Time { return p.startAt }
