// Package cache holds a read-through copy of the downtime record table so
// report generation does not hit the spreadsheet store's rate limits.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/plantops/downtime-keeper/internal/store"
)

// ErrNeverRefreshed is returned by State when no refresh has ever
// succeeded. Reports degrade to "no data available" on it.
var ErrNeverRefreshed = errors.New("cache: no successful refresh yet")

// FailureCause classifies the most recent refresh failure.
type FailureCause string

const (
	CauseNone      FailureCause = ""
	CauseRateLimit FailureCause = "transient-rate-limit"
	CauseOther     FailureCause = "other"
)

// Snapshot is one immutable view of the record table. Readers observe a
// whole snapshot or none; headers and rows are never mixed across
// refreshes.
type Snapshot struct {
	Headers     []string
	Rows        [][]string
	RefreshedAt time.Time
}

// State is what readers get alongside a snapshot so they can judge trust.
type State struct {
	Snapshot  *Snapshot
	Stale     bool
	LastError error
	Cause     FailureCause
}

// Cache is a read-through cache with a staleness threshold. Refresh
// failures are sticky-recorded but never discard previously good data.
type Cache struct {
	fetcher store.Fetcher
	maxAge  time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	snap    *Snapshot
	lastErr error
	cause   FailureCause
}

// New creates a cache over the store's fetch interface.
func New(fetcher store.Fetcher, maxAge time.Duration) *Cache {
	return &Cache{
		fetcher: fetcher,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Refresh fetches all rows and swaps in a new snapshot. On failure the
// previous snapshot stays; the error is recorded until the next success.
func (c *Cache) Refresh(ctx context.Context) error {
	headers, rows, err := c.fetcher.FetchAllRows(ctx)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.lastErr = err
		c.cause = CauseOther
		if errors.Is(err, store.ErrRateLimited) {
			c.cause = CauseRateLimit
		}
		slog.Error("cache refresh failed", "cause", c.cause, "error", err)
		recordRefresh("failure")
		return err
	}

	c.snap = &Snapshot{Headers: headers, Rows: rows, RefreshedAt: now}
	c.lastErr = nil
	c.cause = CauseNone
	recordRefresh("success")
	recordRows(len(rows))

	slog.Info("cache refreshed", "rows", len(rows))
	return nil
}

// IsStale reports whether the last successful refresh is older than the
// configured max age, or has never happened.
func (c *Cache) IsStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staleLocked()
}

func (c *Cache) staleLocked() bool {
	if c.snap == nil {
		return true
	}
	return c.now().Sub(c.snap.RefreshedAt) > c.maxAge
}

// State returns the current snapshot with staleness and sticky-error
// context. Returns ErrNeverRefreshed when no data has ever been loaded.
func (c *Cache) State() (State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snap == nil {
		return State{Stale: true, LastError: c.lastErr, Cause: c.cause}, ErrNeverRefreshed
	}
	return State{
		Snapshot:  c.snap,
		Stale:     c.staleLocked(),
		LastError: c.lastErr,
		Cause:     c.cause,
	}, nil
}

// Run refreshes the cache on a fixed interval until ctx is cancelled.
// Errors are already recorded by Refresh; the loop keeps going.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}
