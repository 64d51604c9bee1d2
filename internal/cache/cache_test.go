package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantops/downtime-keeper/internal/store"
)

type fakeFetcher struct {
	headers []string
	rows    [][]string
	err     error
	calls   int
}

func (f *fakeFetcher) FetchAllRows(_ context.Context) ([]string, [][]string, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.headers, f.rows, nil
}

func TestCache_RefreshSuccess(t *testing.T) {
	fetcher := &fakeFetcher{
		headers: []string{"seq_number", "recorded_at"},
		rows:    [][]string{{"1", "2025-06-27 09:00:00"}},
	}
	c := New(fetcher, 15*time.Minute)

	require.NoError(t, c.Refresh(context.Background()))

	state, err := c.State()
	require.NoError(t, err)
	assert.Equal(t, fetcher.headers, state.Snapshot.Headers)
	assert.Len(t, state.Snapshot.Rows, 1)
	assert.False(t, state.Stale)
	assert.NoError(t, state.LastError)
	assert.Equal(t, CauseNone, state.Cause)
}

func TestCache_NeverRefreshed(t *testing.T) {
	c := New(&fakeFetcher{}, 15*time.Minute)

	assert.True(t, c.IsStale())

	state, err := c.State()
	assert.ErrorIs(t, err, ErrNeverRefreshed)
	assert.Nil(t, state.Snapshot)
	assert.True(t, state.Stale)
}

func TestCache_FailureKeepsPreviousData(t *testing.T) {
	fetcher := &fakeFetcher{
		headers: []string{"seq_number"},
		rows:    [][]string{{"1"}, {"2"}},
	}
	c := New(fetcher, 15*time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	// Two failures in a row: data from before the first failure survives,
	// last_error reflects the most recent cause.
	fetcher.err = fmt.Errorf("boom: %w", store.ErrUnavailable)
	require.Error(t, c.Refresh(context.Background()))

	fetcher.err = fmt.Errorf("quota: %w", store.ErrRateLimited)
	require.Error(t, c.Refresh(context.Background()))

	state, err := c.State()
	require.NoError(t, err)
	assert.Len(t, state.Snapshot.Rows, 2)
	assert.ErrorIs(t, state.LastError, store.ErrRateLimited)
	assert.Equal(t, CauseRateLimit, state.Cause)
}

func TestCache_ErrorClearsOnSuccess(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("down: %w", store.ErrUnavailable)}
	c := New(fetcher, 15*time.Minute)
	require.Error(t, c.Refresh(context.Background()))

	fetcher.err = nil
	fetcher.headers = []string{"seq_number"}
	require.NoError(t, c.Refresh(context.Background()))

	state, err := c.State()
	require.NoError(t, err)
	assert.NoError(t, state.LastError)
	assert.Equal(t, CauseNone, state.Cause)
}

func TestCache_Staleness(t *testing.T) {
	fetcher := &fakeFetcher{headers: []string{"seq_number"}}
	c := New(fetcher, 15*time.Minute)

	current := time.Date(2025, time.June, 27, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	require.NoError(t, c.Refresh(context.Background()))
	assert.False(t, c.IsStale())

	current = current.Add(14 * time.Minute)
	assert.False(t, c.IsStale())

	current = current.Add(2 * time.Minute)
	assert.True(t, c.IsStale())

	// Staleness alone does not produce an error; the snapshot remains.
	state, err := c.State()
	require.NoError(t, err)
	assert.True(t, state.Stale)
	assert.NoError(t, state.LastError)
}
