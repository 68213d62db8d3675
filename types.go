package spooltrack

import (
	"github.com/kailas-cloud/spooltrack/internal/domain"
	"github.com/kailas-cloud/spooltrack/internal/domain/history"
	"github.com/kailas-cloud/spooltrack/internal/domain/material"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
)

// Aliases re-exported from the domain layer so library consumers never need
// to reach into internal packages.
type (
	// Material is a filament material type.
	Material = material.Material
	// Spool is a snapshot of one tracked filament roll.
	Spool = domspool.Spool
	// SpoolState is the spool lifecycle state.
	SpoolState = domspool.State
	// HistoryEntry is one committed print window in a spool's ledger.
	HistoryEntry = history.Entry
	// Selector is the active-spool selection and tracking switch.
	Selector = domain.Selector
)

// Supported materials.
const (
	MaterialCustom = material.Custom
	MaterialPLA    = material.PLA
	MaterialPETG   = material.PETG
	MaterialABS    = material.ABS
	MaterialTPU    = material.TPU
	MaterialNylon  = material.Nylon
	MaterialASA    = material.ASA
)

// Spool lifecycle states.
const (
	StateReady      = domspool.StateReady
	StateConfigured = domspool.StateConfigured
	StateActive     = domspool.StateActive
	StateEmpty      = domspool.StateEmpty
)

// SpoolNone is the cleared selection.
const SpoolNone = domain.SpoolNone

// Materials returns the supported materials in a stable order.
func Materials() []Material {
	return material.All()
}
