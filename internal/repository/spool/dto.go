package spool

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/spooltrack/internal/domain"
	"github.com/kailas-cloud/spooltrack/internal/domain/history"
	"github.com/kailas-cloud/spooltrack/internal/domain/material"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
)

// entryRow is the JSON-serializable representation of a ledger entry for the
// history_json hash field.
type entryRow struct {
	ID        string  `json:"id"`
	Timestamp int64   `json:"ts"`
	File      string  `json:"file,omitempty"`
	Material  string  `json:"material"`
	LengthMM  float64 `json:"length_mm"`
	WeightG   float64 `json:"weight_g"`
	Reverted  bool    `json:"reverted,omitempty"`
}

// spoolToHash converts a domain Spool to a map for HSET.
func spoolToHash(s domspool.Spool) (map[string]string, error) {
	entries := s.Ledger().Entries()
	rows := make([]entryRow, len(entries))
	for i, e := range entries {
		rows[i] = entryRow{
			ID:        e.ID(),
			Timestamp: e.Timestamp(),
			File:      e.File(),
			Material:  string(e.Material()),
			LengthMM:  e.LengthMM(),
			WeightG:   e.WeightG(),
			Reverted:  e.Reverted(),
		}
	}
	historyJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}

	return map[string]string{
		"id":                strconv.Itoa(s.ID()),
		"name":              s.Name(),
		"material":          string(s.Material()),
		"density_override":  formatFloat(s.DensityOverride()),
		"diameter":          formatFloat(s.DiameterMM()),
		"initial_length":    formatFloat(s.InitialLengthMM()),
		"used_length":       formatFloat(s.UsedLengthMM()),
		"locked":            formatBool(s.Locked()),
		"last_print_length": formatFloat(s.LastPrintLengthMM()),
		"last_print_weight": formatFloat(s.LastPrintWeightG()),
		"history_json":      string(historyJSON),
	}, nil
}

// spoolFromHash hydrates a domain Spool from an HGETALL result map.
func spoolFromHash(m map[string]string, id, historyCap int) (domspool.Spool, error) {
	var rows []entryRow
	if hj := m["history_json"]; hj != "" {
		if err := json.Unmarshal([]byte(hj), &rows); err != nil {
			return domspool.Spool{}, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	entries := make([]history.Entry, len(rows))
	for i, r := range rows {
		entries[i] = history.ReconstructEntry(
			r.ID, r.Timestamp, r.File,
			material.Material(r.Material), r.LengthMM, r.WeightG, r.Reverted,
		)
	}

	return domspool.Reconstruct(
		id,
		m["name"],
		material.Material(m["material"]),
		parseFloat(m["density_override"]),
		parseFloat(m["diameter"]),
		parseFloat(m["initial_length"]),
		parseFloat(m["used_length"]),
		m["locked"] == "1",
		parseFloat(m["last_print_length"]),
		parseFloat(m["last_print_weight"]),
		history.ReconstructLedger(historyCap, entries),
	), nil
}

// selectorToHash converts the selection record for HSET.
func selectorToHash(sel domain.Selector) map[string]string {
	return map[string]string{
		"active_spool_id":  strconv.Itoa(sel.ActiveSpoolID),
		"tracking_enabled": formatBool(sel.TrackingEnabled),
	}
}

// selectorFromHash hydrates the selection record.
func selectorFromHash(m map[string]string) domain.Selector {
	id, _ := strconv.Atoi(m["active_spool_id"])
	return domain.Selector{
		ActiveSpoolID:   id,
		TrackingEnabled: m["tracking_enabled"] == "1",
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
