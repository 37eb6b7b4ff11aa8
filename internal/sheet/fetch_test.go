package sheet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestFetchFresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("날짜,카테고리,제목,내용\n"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if res.FromCache {
		t.Error("first fetch should not be from cache")
	}
	if len(res.Body) == 0 {
		t.Error("empty body")
	}
}

func TestFetchNotModifiedUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			if r.Header.Get("If-None-Match") != `"v1"` {
				t.Errorf("conditional header missing, got %q", r.Header.Get("If-None-Match"))
			}
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("cached-body"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	ctx := context.Background()

	if _, err := f.Fetch(ctx, srv.URL); err != nil {
		t.Fatalf("first Fetch() error: %v", err)
	}

	res, err := f.Fetch(ctx, srv.URL)
	if err != nil {
		t.Fatalf("second Fetch() error: %v", err)
	}
	if !res.FromCache {
		t.Error("304 response should serve from cache")
	}
	if string(res.Body) != "cached-body" {
		t.Errorf("cached body = %q", res.Body)
	}
}

func TestFetchNetworkErrorFallsBackToCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("saved"))
	}))

	f := NewFetcher(t.TempDir())
	ctx := context.Background()
	url := srv.URL

	if _, err := f.Fetch(ctx, url); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	srv.Close() // source goes away

	res, err := f.Fetch(ctx, url)
	if err != nil {
		t.Fatalf("expected cache fallback, got error: %v", err)
	}
	if !res.FromCache || string(res.Body) != "saved" {
		t.Errorf("unexpected fallback result: from_cache=%v body=%q", res.FromCache, res.Body)
	}
}

func TestFetchUnreachableWithoutCache(t *testing.T) {
	f := NewFetcher(t.TempDir())
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/none")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestFetchEmptyURL(t *testing.T) {
	f := NewFetcher(t.TempDir())
	if _, err := f.Fetch(context.Background(), ""); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://docs.google.com/spreadsheets/d/abc/export?format=csv", "https://docs.google.com/...(redacted)"},
		{"not-a-url", "sheet://...(redacted)"},
	}
	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
