package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"jubo/internal/bulletin"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	table := bulletin.Table{
		{Date: time.Date(2023, 3, 5, 0, 0, 0, 0, time.UTC), Category: "행사", Title: "봄맞이 대청소", Body: "본당 청소"},
		{Date: time.Date(2021, 4, 2, 0, 0, 0, 0, time.UTC), Category: "예배", Title: "감사예배"},
	}
	fetchedAt := time.Date(2025, 8, 24, 10, 0, 0, 0, time.UTC)

	if err := s.ReplaceSnapshot(ctx, table, fetchedAt); err != nil {
		t.Fatalf("ReplaceSnapshot() error: %v", err)
	}

	got, gotAt, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	// Original order preserved (not date order).
	if got[0].Title != "봄맞이 대청소" || got[1].Title != "감사예배" {
		t.Errorf("order not preserved: %+v", got)
	}
	if got[0].Body != "본당 청소" || got[0].Category != "행사" {
		t.Errorf("fields lost: %+v", got[0])
	}
	if !got[0].Date.UTC().Equal(table[0].Date) {
		t.Errorf("date mismatch: %v vs %v", got[0].Date, table[0].Date)
	}
	if !gotAt.UTC().Equal(fetchedAt) {
		t.Errorf("fetched_at mismatch: %v vs %v", gotAt, fetchedAt)
	}
}

func TestReplaceSnapshotReplacesWholesale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := bulletin.Table{{Date: time.Now().UTC(), Title: "옛 데이터"}}
	if err := s.ReplaceSnapshot(ctx, old, time.Now()); err != nil {
		t.Fatal(err)
	}

	fresh := bulletin.Table{
		{Date: time.Now().UTC(), Title: "새 데이터 1"},
		{Date: time.Now().UTC(), Title: "새 데이터 2"},
	}
	if err := s.ReplaceSnapshot(ctx, fresh, time.Now()); err != nil {
		t.Fatal(err)
	}

	got, _, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Title != "새 데이터 1" {
		t.Errorf("old snapshot leaked through: %+v", got)
	}
}

func TestLoadSnapshotEmpty(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.LoadSnapshot(context.Background())
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestReplaceSnapshotEmptyTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.ReplaceSnapshot(ctx, bulletin.Table{}, time.Now()); err != nil {
		t.Fatalf("ReplaceSnapshot() error: %v", err)
	}
	got, _, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty table, got %+v", got)
	}
}
