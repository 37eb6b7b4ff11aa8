package sheet

import (
	"context"
	"sync"
	"time"

	"jubo/internal/bulletin"
	appLog "jubo/internal/log"
)

// Snapshotter is the subset of the snapshot store the loader needs.
// *store.Store satisfies it; tests supply fakes.
type Snapshotter interface {
	ReplaceSnapshot(ctx context.Context, table bulletin.Table, fetchedAt time.Time) error
	LoadSnapshot(ctx context.Context) (bulletin.Table, time.Time, error)
}

// Loader is a pull-through cache in front of the sheet source: it holds the
// last successful table with its fetch time and only re-pulls once the TTL
// expires or a caller forces a refresh. The table is swapped atomically
// under the mutex, so readers never see a partial load.
type Loader struct {
	fetcher *Fetcher
	store   Snapshotter // optional
	url     string
	ttl     time.Duration
	loc     *time.Location

	mu        sync.Mutex
	table     bulletin.Table
	fetchedAt time.Time
}

// NewLoader creates a Loader. store may be nil, in which case there is no
// cross-restart fallback.
func NewLoader(fetcher *Fetcher, store Snapshotter, url string, ttl time.Duration, loc *time.Location) *Loader {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if loc == nil {
		loc = time.Local
	}
	return &Loader{
		fetcher: fetcher,
		store:   store,
		url:     url,
		ttl:     ttl,
		loc:     loc,
	}
}

// Load returns the current table, pulling from the source when the cached
// one is older than the TTL or force is set.
//
// Failure policy: if a pull fails but an in-memory table exists, the stale
// table is served with a warning; if the process just started, the sqlite
// snapshot is tried before giving up. Only when nothing at all is available
// does Load return the source error.
func (l *Loader) Load(ctx context.Context, force bool) (bulletin.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !force && l.table != nil && time.Since(l.fetchedAt) < l.ttl {
		return l.table, nil
	}

	res, err := l.fetcher.Fetch(ctx, l.url)
	if err != nil {
		return l.fallback(ctx, err)
	}

	table, dropped, err := ParseCSV(res.Body, l.loc)
	if err != nil {
		appLog.Error("sheet parse failed", err)
		return l.fallback(ctx, err)
	}
	if dropped > 0 {
		appLog.Warn("sheet rows dropped due to unparseable dates", "dropped", dropped, "kept", len(table))
	}

	l.table = table
	l.fetchedAt = time.Now()

	if l.store != nil && !res.FromCache {
		if err := l.store.ReplaceSnapshot(ctx, table, l.fetchedAt); err != nil {
			appLog.Error("snapshot save failed", err)
		}
	}

	appLog.Info("bulletin table refreshed", "entries", len(table), "from_cache", res.FromCache)
	return l.table, nil
}

// fallback serves the freshest data still available after a failed pull.
// Caller holds l.mu.
func (l *Loader) fallback(ctx context.Context, cause error) (bulletin.Table, error) {
	if l.table != nil {
		appLog.Warn("sheet pull failed; serving stale table", "age", time.Since(l.fetchedAt).Round(time.Second), "err", cause)
		return l.table, nil
	}
	if l.store != nil {
		table, fetchedAt, err := l.store.LoadSnapshot(ctx)
		if err == nil {
			appLog.Warn("sheet pull failed; restored snapshot from store", "entries", len(table), "fetched_at", fetchedAt.Format(time.RFC3339))
			l.table = table
			l.fetchedAt = fetchedAt
			return l.table, nil
		}
	}
	return nil, cause
}

// Cached returns the in-memory table without triggering a pull; ok is false
// when nothing has been loaded yet.
func (l *Loader) Cached() (bulletin.Table, time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.table == nil {
		return nil, time.Time{}, false
	}
	return l.table, l.fetchedAt, true
}
