// Package spool persists spool slots and the selection record as one hash
// per spool plus a selector hash. History travels inside the spool hash as an
// ordered JSON list field.
package spool

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/spooltrack/internal/db"
	"github.com/kailas-cloud/spooltrack/internal/domain"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
)

// DefaultKeyPrefix namespaces all keys written by the repository.
const DefaultKeyPrefix = "spooltrack:"

// store is the consumer interface for spool persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo implements the registry and tracker storage contracts.
type Repo struct {
	store      store
	prefix     string
	historyCap int
}

// New creates a spool repository.
func New(s store, historyCap int) *Repo {
	return &Repo{store: s, prefix: DefaultKeyPrefix, historyCap: historyCap}
}

// WithKeyPrefix overrides the key namespace.
func (r *Repo) WithKeyPrefix(prefix string) *Repo {
	if prefix != "" {
		r.prefix = prefix
	}
	return r
}

// SaveSpool writes a spool slot, history included.
func (r *Repo) SaveSpool(ctx context.Context, s domspool.Spool) error {
	fields, err := spoolToHash(s)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, r.spoolKey(s.ID()), fields); err != nil {
		return fmt.Errorf("hset spool %d: %w", s.ID(), err)
	}
	return nil
}

// GetSpool reads one spool slot. Returns domain.ErrNotFound for a slot that
// was never persisted.
func (r *Repo) GetSpool(ctx context.Context, id int) (domspool.Spool, error) {
	m, err := r.store.HGetAll(ctx, r.spoolKey(id))
	if err != nil {
		return domspool.Spool{}, fmt.Errorf("hgetall spool %d: %w", id, err)
	}
	if len(m) == 0 {
		return domspool.Spool{}, domain.ErrNotFound
	}
	return spoolFromHash(m, id, r.historyCap)
}

// ListSpools reads the given slots in one round-trip. Slots that were never
// persisted come back as fresh unconfigured spools.
func (r *Repo) ListSpools(ctx context.Context, ids []int) ([]domspool.Spool, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.spoolKey(id)
	}
	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi spools: %w", err)
	}

	spools := make([]domspool.Spool, len(ids))
	for i, m := range results {
		if len(m) == 0 {
			spools[i] = domspool.New(ids[i], r.historyCap)
			continue
		}
		s, err := spoolFromHash(m, ids[i], r.historyCap)
		if err != nil {
			return nil, fmt.Errorf("parse spool %s: %w", keys[i], err)
		}
		spools[i] = s
	}
	return spools, nil
}

// HasState reports whether a selection record was ever persisted. The record
// is written on the first selector change, so a missing key means a fresh
// install.
func (r *Repo) HasState(ctx context.Context) (bool, error) {
	ok, err := r.store.Exists(ctx, r.selectorKey())
	if err != nil {
		return false, fmt.Errorf("exists selector: %w", err)
	}
	return ok, nil
}

// PruneStaleSlots deletes spool hashes left behind by a larger slot count.
// Returns the slot ids that were dropped.
func (r *Repo) PruneStaleSlots(ctx context.Context, slots int) ([]int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"spool:*")
	if err != nil {
		return nil, fmt.Errorf("scan spools: %w", err)
	}

	var pruned []int
	for _, key := range keys {
		id, err := strconv.Atoi(strings.TrimPrefix(key, r.prefix+"spool:"))
		if err != nil {
			continue
		}
		if id >= 1 && id <= slots {
			continue
		}
		if err := r.store.Del(ctx, key); err != nil {
			return pruned, fmt.Errorf("del stale spool %s: %w", key, err)
		}
		pruned = append(pruned, id)
	}
	return pruned, nil
}

// SaveSelector writes the selection record.
func (r *Repo) SaveSelector(ctx context.Context, sel domain.Selector) error {
	if err := r.store.HSet(ctx, r.selectorKey(), selectorToHash(sel)); err != nil {
		return fmt.Errorf("hset selector: %w", err)
	}
	return nil
}

// GetSelector reads the selection record. A missing record yields the zero
// Selector: no active spool, tracking off.
func (r *Repo) GetSelector(ctx context.Context) (domain.Selector, error) {
	m, err := r.store.HGetAll(ctx, r.selectorKey())
	if err != nil {
		return domain.Selector{}, fmt.Errorf("hgetall selector: %w", err)
	}
	return selectorFromHash(m), nil
}

// SaveCounter persists the last observed raw telemetry counter so a restart
// never attributes the accumulated gap as consumption.
func (r *Repo) SaveCounter(ctx context.Context, raw float64) error {
	val := strconv.FormatFloat(raw, 'f', -1, 64)
	if err := r.store.Set(ctx, r.counterKey(), []byte(val)); err != nil {
		return fmt.Errorf("set counter: %w", err)
	}
	return nil
}

// LoadCounter reads the persisted raw counter. ok is false when no counter
// was ever stored.
func (r *Repo) LoadCounter(ctx context.Context) (raw float64, ok bool, err error) {
	data, err := r.store.Get(ctx, r.counterKey())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get counter: %w", err)
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse counter: %w", err)
	}
	return f, true, nil
}

// Key patterns: spooltrack:spool:{id}, spooltrack:selector, spooltrack:telemetry:raw

func (r *Repo) spoolKey(id int) string {
	return fmt.Sprintf("%sspool:%d", r.prefix, id)
}

func (r *Repo) selectorKey() string {
	return r.prefix + "selector"
}

func (r *Repo) counterKey() string {
	return r.prefix + "telemetry:raw"
}
