package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/louisbranch/entropy/internal/history"
	"github.com/louisbranch/entropy/seed"
)

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestPutAndListNewestFirst(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	older := history.Record{
		ID: history.NewID(), Seed: 101, Source: seed.SourceEnvironment,
		Errored: true, Persisted: true, Packages: 3, FailedTests: 2,
		StartedAt: base, FinishedAt: base.Add(2 * time.Second),
	}
	newer := history.Record{
		ID: history.NewID(), Seed: 707, Source: seed.SourceStored,
		Packages: 3, StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second),
	}
	for _, r := range []history.Record{older, newer} {
		if err := store.Put(ctx, r); err != nil {
			t.Fatalf("put %s: %v", r.ID, err)
		}
	}

	got, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]history.Record{newer, older}, got); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}

	got, err = store.List(ctx, 1)
	if err != nil {
		t.Fatalf("list one: %v", err)
	}
	if len(got) != 1 || got[0].Seed != 707 {
		t.Fatalf("expected newest record only, got %+v", got)
	}
}

func TestPutDefaultsTimes(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, history.Record{ID: history.NewID(), Seed: 5, Source: seed.SourceGenerated}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got[0].StartedAt.IsZero() || !got[0].FinishedAt.Equal(got[0].StartedAt) {
		t.Fatalf("expected defaulted times, got %+v", got[0])
	}
	if got[0].Source != seed.SourceGenerated {
		t.Fatalf("expected generated source, got %v", got[0].Source)
	}
}

func TestPutRejectsInvalidAndDuplicate(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, history.Record{Seed: 1}); !errors.Is(err, history.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
	r := history.Record{ID: history.NewID(), Seed: 1}
	if err := store.Put(ctx, r); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, r); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
}

func TestListLimitBelowOne(t *testing.T) {
	store := openTempStore(t)
	got, err := store.List(context.Background(), 0)
	if err != nil || got != nil {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
}

func TestCanceledContext(t *testing.T) {
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, history.Record{ID: history.NewID(), Seed: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from put, got %v", err)
	}
	if _, err := store.List(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from list, got %v", err)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Put(ctx, history.Record{ID: history.NewID(), Seed: 42}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.List(ctx, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Seed != 42 {
		t.Fatalf("expected record to survive reopen, got %+v", got)
	}
}

func TestCloseNilStore(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
