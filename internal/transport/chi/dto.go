package chi

import (
	"time"

	"github.com/kailas-cloud/spooltrack/internal/domain/history"
	domsession "github.com/kailas-cloud/spooltrack/internal/domain/session"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
)

type stateResponse struct {
	ActiveSpoolID   *int             `json:"active_spool_id"`
	TrackingEnabled bool             `json:"tracking_enabled"`
	Session         *sessionResponse `json:"session,omitempty"`
}

type sessionResponse struct {
	SpoolID    int       `json:"spool_id"`
	BaselineMM float64   `json:"baseline_mm"`
	File       string    `json:"file,omitempty"`
	StartAt    time.Time `json:"start_at"`
}

type spoolResponse struct {
	ID                int     `json:"id"`
	Name              string  `json:"name,omitempty"`
	Material          string  `json:"material"`
	DensityOverride   float64 `json:"density_override,omitempty"`
	Density           float64 `json:"density"`
	DiameterMM        float64 `json:"diameter_mm"`
	InitialLengthMM   float64 `json:"initial_length_mm"`
	UsedLengthMM      float64 `json:"used_length_mm"`
	RemainingLengthMM float64 `json:"remaining_length_mm"`
	InitialWeightG    float64 `json:"initial_weight_g"`
	UsedWeightG       float64 `json:"used_weight_g"`
	RemainingWeightG  float64 `json:"remaining_weight_g"`
	PercentRemaining  float64 `json:"percent_remaining"`
	Locked            bool    `json:"locked"`
	State             string  `json:"state"`
	LastPrintLengthMM float64 `json:"last_print_length_mm,omitempty"`
	LastPrintWeightG  float64 `json:"last_print_weight_g,omitempty"`
	HistoryCount      int     `json:"history_count"`
}

type spoolListResponse struct {
	Items []spoolResponse `json:"items"`
}

type historyEntryResponse struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	File      string    `json:"file,omitempty"`
	Material  string    `json:"material"`
	LengthMM  float64   `json:"length_mm"`
	WeightG   float64   `json:"weight_g"`
	Reverted  bool      `json:"reverted"`
}

type historyListResponse struct {
	Items []historyEntryResponse `json:"items"`
}

type undoResponse struct {
	Reverted historyEntryResponse `json:"reverted"`
	Spool    spoolResponse        `json:"spool"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func spoolToResponse(sp domspool.Spool, active bool) spoolResponse {
	return spoolResponse{
		ID:                sp.ID(),
		Name:              sp.Name(),
		Material:          string(sp.Material()),
		DensityOverride:   sp.DensityOverride(),
		Density:           sp.Density(),
		DiameterMM:        sp.DiameterMM(),
		InitialLengthMM:   sp.InitialLengthMM(),
		UsedLengthMM:      sp.UsedLengthMM(),
		RemainingLengthMM: sp.RemainingLengthMM(),
		InitialWeightG:    sp.InitialWeightG(),
		UsedWeightG:       sp.UsedWeightG(),
		RemainingWeightG:  sp.RemainingWeightG(),
		PercentRemaining:  sp.PercentRemaining(),
		Locked:            sp.Locked(),
		State:             string(sp.State(active)),
		LastPrintLengthMM: sp.LastPrintLengthMM(),
		LastPrintWeightG:  sp.LastPrintWeightG(),
		HistoryCount:      sp.Ledger().Len(),
	}
}

func entryToResponse(e history.Entry) historyEntryResponse {
	return historyEntryResponse{
		ID:        e.ID(),
		Timestamp: time.UnixMilli(e.Timestamp()).UTC(),
		File:      e.File(),
		Material:  string(e.Material()),
		LengthMM:  e.LengthMM(),
		WeightG:   e.WeightG(),
		Reverted:  e.Reverted(),
	}
}

func sessionToResponse(sess domsession.PrintSession) *sessionResponse {
	return &sessionResponse{
		SpoolID:    sess.SpoolID(),
		BaselineMM: sess.Baseline(),
		File:       sess.File(),
		StartAt:    sess.StartAt().UTC(),
	}
}
