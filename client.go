// Package spooltrack embeds the filament tracking engine as a library: the
// same registry, tracker, session and undo services the server runs, wired
// over a Valkey/Redis store without the HTTP surface. The caller feeds
// telemetry via Observe/HandleStatus and issues commands directly.
package spooltrack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/spooltrack/internal/db"
	dbRedis "github.com/kailas-cloud/spooltrack/internal/db/redis"
	"github.com/kailas-cloud/spooltrack/internal/domain"
	"github.com/kailas-cloud/spooltrack/internal/domain/history"
	"github.com/kailas-cloud/spooltrack/internal/domain/material"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
	"github.com/kailas-cloud/spooltrack/internal/poll"
	spoolrepo "github.com/kailas-cloud/spooltrack/internal/repository/spool"
	registryuc "github.com/kailas-cloud/spooltrack/internal/usecase/registry"
	sessionuc "github.com/kailas-cloud/spooltrack/internal/usecase/session"
	trackeruc "github.com/kailas-cloud/spooltrack/internal/usecase/tracker"
	undouc "github.com/kailas-cloud/spooltrack/internal/usecase/undo"
)

const defaultReadinessTimeout = 10 * time.Second

// Sentinel errors re-exported from the domain layer. Use errors.Is() to check.
var (
	ErrNotFound      = domain.ErrNotFound
	ErrInvalidInput  = domain.ErrInvalidInput
	ErrLocked        = domain.ErrLocked
	ErrNoActiveSpool = domain.ErrNoActiveSpool
	ErrNoHistory     = domain.ErrNoHistory
	ErrSpoolInUse    = domain.ErrSpoolInUse
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs           []string
	password        string
	keyPrefix       string
	slots           int
	historyCap      int
	sanityCeilingMM float64
	logger          *zap.Logger
}

// WithValkey sets the Valkey connection address and password.
func WithValkey(addr, password string) Option {
	return func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithRedis sets the Redis connection address and password. The same driver
// serves both stores; only plain hash and KV commands are used.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithKeyPrefix sets the storage key prefix (default "spooltrack:").
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) { c.keyPrefix = prefix }
}

// WithSlots sets the spool slot count (default 4).
func WithSlots(n int) Option {
	return func(c *clientConfig) { c.slots = n }
}

// WithHistoryCap sets the per-spool history ledger cap (default 50).
func WithHistoryCap(n int) Option {
	return func(c *clientConfig) { c.historyCap = n }
}

// WithSanityCeiling sets the largest per-tick delta accepted as real
// consumption, in mm (default 50000).
func WithSanityCeiling(mm float64) Option {
	return func(c *clientConfig) { c.sanityCeilingMM = mm }
}

// WithLogger sets the logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// Client is the embedded engine entry point.
type Client struct {
	store    db.Store
	registry *registryuc.Service
	tracker  *trackeruc.Service
	sessions *sessionuc.Service
	undo     *undouc.Service
}

// New creates a Client, connects to the database and hydrates engine state.
// The provided context is used for the readiness check and initial load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if len(cfg.addrs) == 0 {
		return nil, errors.New("spooltrack: database address required (use WithValkey or WithRedis)")
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("spooltrack: create store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("spooltrack: database not ready: %w", err)
	}

	repo := spoolrepo.New(store, cfg.historyCap)
	if cfg.keyPrefix != "" {
		repo = repo.WithKeyPrefix(cfg.keyPrefix)
	}

	registry := registryuc.New(repo, cfg.slots, logger)
	if err := registry.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("spooltrack: load registry: %w", err)
	}

	tracker := trackeruc.New(registry, repo, cfg.sanityCeilingMM, logger)
	if err := tracker.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("spooltrack: load telemetry counter: %w", err)
	}

	return &Client{
		store:    store,
		registry: registry,
		tracker:  tracker,
		sessions: sessionuc.New(registry, logger),
		undo:     undouc.New(registry, logger),
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Observe feeds one raw cumulative extrusion counter reading into the engine.
func (c *Client) Observe(ctx context.Context, rawMM float64) error {
	return c.tracker.Observe(ctx, rawMM)
}

// HandleStatus feeds one raw printer status string into the print session
// state machine. file is the printer's currently reported file name.
func (c *Client) HandleStatus(ctx context.Context, status, file string) error {
	return c.sessions.HandleStatus(ctx, poll.MapStatus(status), file)
}

// Spool returns a snapshot of one slot.
func (c *Client) Spool(id int) (domspool.Spool, error) {
	return c.registry.Spool(id)
}

// Spools returns snapshots of all slots in slot order.
func (c *Client) Spools() []domspool.Spool {
	return c.registry.Spools()
}

// Selector returns the current selection state.
func (c *Client) Selector() domain.Selector {
	return c.registry.Selector()
}

// SelectActiveSpool designates the usage target. domain.SpoolNone clears it.
func (c *Client) SelectActiveSpool(ctx context.Context, id int) error {
	return c.registry.SelectActiveSpool(ctx, id)
}

// SetTracking flips the tracking switch.
func (c *Client) SetTracking(ctx context.Context, enabled bool) error {
	return c.registry.SetTrackingEnabled(ctx, enabled)
}

// SetupSpool runs the one-shot configuration wizard on a ready or empty slot.
func (c *Client) SetupSpool(ctx context.Context, id int, name string, mat material.Material, grams float64, autoLock bool) error {
	return c.registry.SetupSpool(ctx, id, name, mat, grams, autoLock)
}

// SetName renames a spool.
func (c *Client) SetName(ctx context.Context, id int, name string) error {
	return c.registry.SetName(ctx, id, name)
}

// SetMaterial sets a spool's material.
func (c *Client) SetMaterial(ctx context.Context, id int, mat material.Material) error {
	return c.registry.SetMaterial(ctx, id, mat)
}

// SetDensity sets a per-spool density override in g/cm³ (0 clears it).
func (c *Client) SetDensity(ctx context.Context, id int, density float64) error {
	return c.registry.SetDensity(ctx, id, density)
}

// SetWeight sizes the roll by weight in grams.
func (c *Client) SetWeight(ctx context.Context, id int, grams float64) error {
	return c.registry.SetWeight(ctx, id, grams)
}

// SetLength sets the roll length directly in mm.
func (c *Client) SetLength(ctx context.Context, id int, lengthMM float64) error {
	return c.registry.SetLength(ctx, id, lengthMM)
}

// SetLock sets the lock flag.
func (c *Client) SetLock(ctx context.Context, id int, locked bool) error {
	return c.registry.SetLock(ctx, id, locked)
}

// ResetSpool clears usage and unlocks the slot, keeping the configuration.
func (c *Client) ResetSpool(ctx context.Context, id int) error {
	return c.registry.ResetSpool(ctx, id)
}

// QuickReload swaps in a fresh roll of the same configuration.
func (c *Client) QuickReload(ctx context.Context, id int) error {
	return c.registry.MarkEmptyQuickReload(ctx, id)
}

// UndoLast reverts the newest applied history entry of a spool.
func (c *Client) UndoLast(ctx context.Context, id int) (history.Entry, error) {
	return c.undo.UndoLast(ctx, id)
}

// UndoEntry reverts a named history entry of a spool.
func (c *Client) UndoEntry(ctx context.Context, id int, entryID string) (history.Entry, error) {
	return c.undo.UndoEntry(ctx, id, entryID)
}
