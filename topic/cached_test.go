package topic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingTrending struct{}

func (failingTrending) Snapshot(context.Context) (map[string]float64, error) {
	return nil, errors.New("boom")
}

func TestCachedTrending_HitsSourceOncePerTTL(t *testing.T) {
	ctx := context.Background()
	src := &countingTrending{snap: map[string]float64{"a": 1}}
	c := NewCachedTrending(src, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		snap, err := c.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"a": 1}, snap)
	}
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	_, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	c.Invalidate()
	_, err = c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestCachedTrending_NilSnapshotIsCached(t *testing.T) {
	src := &countingTrending{}
	c := NewCachedTrending(src, 0)
	assert.Equal(t, DefaultSnapshotTTL, c.ttl)

	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
	_, _ = c.Snapshot(context.Background())
	assert.Equal(t, 1, src.calls)
}

func TestCachedTrending_ErrorNotCached(t *testing.T) {
	c := NewCachedTrending(failingTrending{}, time.Minute)
	_, err := c.Snapshot(context.Background())
	require.Error(t, err)
	assert.Nil(t, c.snapshot)
}

func TestRefresher_InvalidatesCache(t *testing.T) {
	ctx := context.Background()
	tr := newTrending(t)
	c := NewCachedTrending(tr, time.Hour)

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)

	r := &Refresher{Source: fakeActivity{"x": 7}, Trending: tr, Logger: zerolog.Nop(), Cache: c}
	_, err = r.Run(ctx)
	require.NoError(t, err)

	snap, err = c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x": 7}, snap)
}
