package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing spool slot or history entry.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a malformed command; no state was changed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLocked signals a configuration mutation on a locked spool.
	ErrLocked = errors.New("spool is locked")
	// ErrNoActiveSpool signals telemetry with no active spool or tracking off.
	ErrNoActiveSpool = errors.New("no active spool")
	// ErrNoHistory signals an undo with nothing eligible to revert.
	ErrNoHistory = errors.New("no history to revert")
	// ErrSpoolInUse signals a setup attempt on a spool that is neither ready nor empty.
	ErrSpoolInUse = errors.New("spool is in use")
)

// CounterResetError carries the raw counter values of an implausible delta.
// The tick is discarded and the counter resynced; the error is logged, never
// returned to a caller.
type CounterResetError struct {
	Previous float64
	Current  float64
}

func (e *CounterResetError) Error() string {
	return fmt.Sprintf("counter reset detected: %.0f -> %.0f", e.Previous, e.Current)
}
