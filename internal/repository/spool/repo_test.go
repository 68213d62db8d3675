package spool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/spooltrack/internal/db"
	"github.com/kailas-cloud/spooltrack/internal/domain"
	"github.com/kailas-cloud/spooltrack/internal/domain/history"
	"github.com/kailas-cloud/spooltrack/internal/domain/material"
	domspool "github.com/kailas-cloud/spooltrack/internal/domain/spool"
)

// fakeStore is an in-memory stand-in for the rueidis-backed store.
type fakeStore struct {
	hashes map[string]map[string]string
	kv     map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes: make(map[string]map[string]string),
		kv:     make(map[string][]byte),
	}
}

func (f *fakeStore) HSet(_ context.Context, key string, fields map[string]string) error {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *fakeStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		m, err := f.HGetAll(ctx, key)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func (f *fakeStore) Del(_ context.Context, key string) error {
	delete(f.hashes, key)
	delete(f.kv, key)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	if _, ok := f.hashes[key]; ok {
		return true, nil
	}
	_, ok := f.kv[key]
	return ok, nil
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	for k := range f.kv {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.kv[key] = value
	return nil
}

func TestSpool_RoundTrip(t *testing.T) {
	repo := New(newFakeStore(), 50)
	ctx := context.Background()

	sp, _ := domspool.New(2, 50).WithName("Galaxy PLA")
	sp, _ = sp.WithMaterial(material.PLA)
	sp, _ = sp.WithDensityOverride(1.31)
	sp, _ = sp.WithInitialLength(330000)
	sp = sp.ApplyUsage(12345.5).WithLastPrint(10000, 29.8).WithLock(true)
	sp = sp.AppendHistory(history.NewEntry("benchy.gcode", material.PLA, 10000, 29.8))

	if err := repo.SaveSpool(ctx, sp); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.GetSpool(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Name() != "Galaxy PLA" || got.Material() != material.PLA {
		t.Errorf("name/material = %q/%q", got.Name(), got.Material())
	}
	if got.DensityOverride() != 1.31 {
		t.Errorf("density override = %v", got.DensityOverride())
	}
	if got.InitialLengthMM() != 330000 || got.UsedLengthMM() != 12345.5 {
		t.Errorf("lengths = %v/%v", got.InitialLengthMM(), got.UsedLengthMM())
	}
	if !got.Locked() {
		t.Error("lock flag lost")
	}
	if got.LastPrintLengthMM() != 10000 || got.LastPrintWeightG() != 29.8 {
		t.Errorf("last print = %v/%v", got.LastPrintLengthMM(), got.LastPrintWeightG())
	}

	entries := got.Ledger().Entries()
	if len(entries) != 1 {
		t.Fatalf("ledger len = %d, want 1", len(entries))
	}
	orig := sp.Ledger().Entries()[0]
	e := entries[0]
	if e.ID() != orig.ID() || e.Timestamp() != orig.Timestamp() {
		t.Error("entry identity lost")
	}
	if e.File() != "benchy.gcode" || e.LengthMM() != 10000 || e.Reverted() {
		t.Errorf("entry = %q/%v/reverted=%v", e.File(), e.LengthMM(), e.Reverted())
	}
}

func TestSpool_RevertedFlagSurvives(t *testing.T) {
	repo := New(newFakeStore(), 50)
	ctx := context.Background()

	sp := domspool.New(1, 50).AppendHistory(history.NewEntry("a", material.PLA, 100, 0))
	sp, _, err := sp.RevertHistory(sp.Ledger().Entries()[0].ID())
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.SaveSpool(ctx, sp); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetSpool(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Ledger().Entries()[0].Reverted() {
		t.Error("reverted flag lost in round-trip")
	}
}

func TestGetSpool_NotFound(t *testing.T) {
	repo := New(newFakeStore(), 50)
	if _, err := repo.GetSpool(context.Background(), 3); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestListSpools_FillsFreshSlots(t *testing.T) {
	repo := New(newFakeStore(), 50)
	ctx := context.Background()

	sp, _ := domspool.New(2, 50).WithName("stored")
	if err := repo.SaveSpool(ctx, sp); err != nil {
		t.Fatal(err)
	}

	spools, err := repo.ListSpools(ctx, []int{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(spools) != 4 {
		t.Fatalf("len = %d", len(spools))
	}
	if spools[1].Name() != "stored" {
		t.Errorf("slot 2 = %q", spools[1].Name())
	}
	for _, i := range []int{0, 2, 3} {
		if spools[i].IsConfigured() {
			t.Errorf("slot %d should come back fresh", i+1)
		}
		if spools[i].Material() != material.Custom {
			t.Errorf("slot %d material = %q", i+1, spools[i].Material())
		}
	}
}

func TestSelector_RoundTrip(t *testing.T) {
	repo := New(newFakeStore(), 50)
	ctx := context.Background()

	want := domain.Selector{ActiveSpoolID: 3, TrackingEnabled: true}
	if err := repo.SaveSelector(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetSelector(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGetSelector_MissingIsZero(t *testing.T) {
	repo := New(newFakeStore(), 50)
	got, err := repo.GetSelector(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.HasActive() || got.TrackingEnabled {
		t.Errorf("got %+v, want zero selector", got)
	}
}

func TestHasState(t *testing.T) {
	repo := New(newFakeStore(), 50)
	ctx := context.Background()

	has, err := repo.HasState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("fresh store should have no state")
	}

	if err := repo.SaveSelector(ctx, domain.Selector{TrackingEnabled: true}); err != nil {
		t.Fatal(err)
	}
	has, err = repo.HasState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("state should be detected once the selector is written")
	}
}

func TestPruneStaleSlots(t *testing.T) {
	store := newFakeStore()
	repo := New(store, 50)
	ctx := context.Background()

	for _, id := range []int{1, 2, 5, 8} {
		if err := repo.SaveSpool(ctx, domspool.New(id, 50)); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.SaveSelector(ctx, domain.Selector{ActiveSpoolID: 1}); err != nil {
		t.Fatal(err)
	}

	pruned, err := repo.PruneStaleSlots(ctx, 4)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(pruned) != 2 {
		t.Fatalf("pruned = %v, want slots 5 and 8", pruned)
	}
	for _, id := range pruned {
		if id != 5 && id != 8 {
			t.Errorf("pruned slot %d, want only 5 and 8", id)
		}
	}
	if _, ok := store.hashes["spooltrack:spool:2"]; !ok {
		t.Error("in-range slot must survive the prune")
	}
	if _, ok := store.hashes["spooltrack:selector"]; !ok {
		t.Error("selector key must survive the prune")
	}
}

func TestPruneStaleSlots_NothingStale(t *testing.T) {
	repo := New(newFakeStore(), 50)
	ctx := context.Background()

	if err := repo.SaveSpool(ctx, domspool.New(3, 50)); err != nil {
		t.Fatal(err)
	}
	pruned, err := repo.PruneStaleSlots(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(pruned) != 0 {
		t.Errorf("pruned = %v, want none", pruned)
	}
}

func TestCounter_RoundTrip(t *testing.T) {
	repo := New(newFakeStore(), 50)
	ctx := context.Background()

	_, ok, err := repo.LoadCounter(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("counter should be absent initially")
	}

	if err := repo.SaveCounter(ctx, 123456.75); err != nil {
		t.Fatal(err)
	}
	raw, ok, err := repo.LoadCounter(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || raw != 123456.75 {
		t.Errorf("got %v/%v, want 123456.75/true", raw, ok)
	}
}

func TestKeyPrefix(t *testing.T) {
	store := newFakeStore()
	repo := New(store, 50).WithKeyPrefix("printerfarm:")
	ctx := context.Background()

	if err := repo.SaveSpool(ctx, domspool.New(1, 50)); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.hashes["printerfarm:spool:1"]; !ok {
		t.Errorf("keys = %v, want printerfarm namespace", keysOf(store.hashes))
	}
}

func keysOf(m map[string]map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
