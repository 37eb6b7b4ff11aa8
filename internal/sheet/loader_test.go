package sheet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"jubo/internal/bulletin"
)

const loaderCSV = "날짜,카테고리,제목,내용\n2023-03-05,행사,봄맞이 대청소,\n"

type fakeSnap struct {
	table     bulletin.Table
	fetchedAt time.Time
	replaced  int
}

func (f *fakeSnap) ReplaceSnapshot(_ context.Context, table bulletin.Table, fetchedAt time.Time) error {
	f.table = append(bulletin.Table(nil), table...)
	f.fetchedAt = fetchedAt
	f.replaced++
	return nil
}

func (f *fakeSnap) LoadSnapshot(context.Context) (bulletin.Table, time.Time, error) {
	return f.table, f.fetchedAt, nil
}

func TestLoaderTTL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(loaderCSV))
	}))
	defer srv.Close()

	l := NewLoader(NewFetcher(t.TempDir()), nil, srv.URL, time.Hour, time.UTC)
	ctx := context.Background()

	if _, err := l.Load(ctx, false); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, err := l.Load(ctx, false); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("TTL cache should avoid second pull, got %d hits", hits.Load())
	}

	// Force bypasses the TTL.
	if _, err := l.Load(ctx, true); err != nil {
		t.Fatalf("forced Load() error: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("forced load should hit the source, got %d hits", hits.Load())
	}
}

func TestLoaderPersistsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(loaderCSV))
	}))
	defer srv.Close()

	snap := &fakeSnap{}
	l := NewLoader(NewFetcher(t.TempDir()), snap, srv.URL, time.Hour, time.UTC)

	if _, err := l.Load(context.Background(), false); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if snap.replaced != 1 || len(snap.table) != 1 {
		t.Errorf("snapshot not persisted: replaced=%d entries=%d", snap.replaced, len(snap.table))
	}
}

func TestLoaderRestoresSnapshotWhenSourceDown(t *testing.T) {
	snap := &fakeSnap{
		table:     bulletin.Table{{Date: time.Date(2023, 3, 5, 0, 0, 0, 0, time.UTC), Title: "복원됨"}},
		fetchedAt: time.Now().Add(-24 * time.Hour),
	}
	l := NewLoader(NewFetcher(t.TempDir()), snap, "http://127.0.0.1:1/none", time.Hour, time.UTC)

	table, err := l.Load(context.Background(), false)
	if err != nil {
		t.Fatalf("expected snapshot restore, got error: %v", err)
	}
	if len(table) != 1 || table[0].Title != "복원됨" {
		t.Errorf("unexpected restored table: %+v", table)
	}
}

func TestLoaderServesStaleOnFailure(t *testing.T) {
	var broken atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if broken.Load() {
			// A sheet with its header row deleted: fetch succeeds,
			// parse fails, the loader must keep serving the old table.
			_, _ = w.Write([]byte("garbage without header\n"))
			return
		}
		_, _ = w.Write([]byte(loaderCSV))
	}))
	defer srv.Close()

	l := NewLoader(NewFetcher(t.TempDir()), nil, srv.URL, time.Nanosecond, time.UTC)
	ctx := context.Background()

	if _, err := l.Load(ctx, false); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	broken.Store(true)

	table, err := l.Load(ctx, true)
	if err != nil {
		t.Fatalf("expected stale table, got error: %v", err)
	}
	if len(table) != 1 {
		t.Errorf("stale table lost: %+v", table)
	}
}

func TestLoaderErrorWithNothingAvailable(t *testing.T) {
	l := NewLoader(NewFetcher(t.TempDir()), nil, "http://127.0.0.1:1/none", time.Hour, time.UTC)
	if _, err := l.Load(context.Background(), false); err == nil {
		t.Error("expected error when no source, no memory, no snapshot")
	}
}
