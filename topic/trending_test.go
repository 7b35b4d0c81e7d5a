package topic

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/store"
)

type fakeActivity map[string]float64

func (f fakeActivity) TopicActivity(context.Context, time.Time) (map[string]float64, error) {
	return f, nil
}

func newTrending(t *testing.T) *StoreTrending {
	t.Helper()
	ms := store.NewMemoryStore()
	t.Cleanup(func() { _ = ms.Close() })
	return &StoreTrending{Store: ms}
}

func TestStoreTrending_ReplaceAndSnapshot(t *testing.T) {
	ctx := context.Background()
	tr := newTrending(t)

	require.NoError(t, tr.Replace(ctx, map[string]float64{"a": 1, "b": 2}))
	require.NoError(t, tr.Replace(ctx, map[string]float64{"c": 3, "d": 4, "e": 5}))

	snap, err := tr.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"c": 3, "d": 4, "e": 5}, snap)

	tr.TopN = 2
	snap, err = tr.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"d": 4, "e": 5}, snap)
}

func TestStoreTrending_ReplaceEmptiesOldSnapshot(t *testing.T) {
	ctx := context.Background()
	tr := newTrending(t)

	require.NoError(t, tr.Replace(ctx, map[string]float64{"a": 1}))
	require.NoError(t, tr.Replace(ctx, map[string]float64{}))

	snap, err := tr.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)

	status, err := tr.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Topics)
}

func TestStoreTrending_Status(t *testing.T) {
	ctx := context.Background()
	tr := newTrending(t)

	_, err := tr.Status(ctx)
	assert.True(t, core.IsStoreNotFound(err))

	before := time.Now().Add(-time.Second)
	require.NoError(t, tr.Replace(ctx, map[string]float64{"a": 1, "b": 2}))

	status, err := tr.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Topics)
	assert.True(t, status.RefreshedAt.After(before))
}

func TestRefresher_Run(t *testing.T) {
	ctx := context.Background()
	tr := newTrending(t)
	r := &Refresher{Source: fakeActivity{"x": 7}, Trending: tr, Logger: zerolog.Nop()}

	n, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap, err := tr.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"x": 7}, snap)

	status, err := tr.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Topics)
}

type countingTrending struct {
	calls int
	snap  map[string]float64
}

func (c *countingTrending) Snapshot(context.Context) (map[string]float64, error) {
	c.calls++
	return c.snap, nil
}

func TestSelectNode_SnapshotOnlyForEstablished(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		profile   core.TopicProfile
		wantCalls int
		wantLen   int
	}{
		{name: "new user", profile: makeProfile(5, func(int) float64 { return 1 }), wantCalls: 0, wantLen: 5},
		{name: "established", profile: makeProfile(100, func(int) float64 { return 1 }), wantCalls: 1, wantLen: 101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &countingTrending{snap: map[string]float64{"hot": 3}}
			n := &SelectNode{Trending: tr, Options: DefaultOptions()}
			fctx := &core.FeedContext{Profile: tt.profile}

			_, err := n.Process(ctx, fctx, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, tr.calls)
			assert.Len(t, fctx.Topics, tt.wantLen)
			assert.Len(t, fctx.Profile, len(tt.profile))
		})
	}
}

func TestSelectNode_InterestTopicsKeepTopicsPastCutoff(t *testing.T) {
	// 前 60 个与 t300 高于 prior，其余都在 prior 以下：截断只保留前 60 个
	profile := makeProfile(400, func(i int) float64 {
		if i < 60 || i == 300 {
			return 0.9
		}
		return 0.05
	})
	n := &SelectNode{Trending: &countingTrending{}, Options: DefaultOptions()}
	fctx := &core.FeedContext{Profile: profile}

	_, err := n.Process(context.Background(), fctx, nil)
	require.NoError(t, err)
	assert.Len(t, fctx.Topics, 61)
	assert.False(t, fctx.Topics.Has("t300"))
	assert.Len(t, fctx.InterestTopics, 400)
	assert.True(t, fctx.InterestTopics.Has("t300"))
}

func TestSelectNode_NoTopicsStillRecordsInterestTopics(t *testing.T) {
	profile := makeProfile(400, func(int) float64 { return 0.01 })
	n := &SelectNode{Options: DefaultOptions()}
	fctx := &core.FeedContext{Profile: profile}

	_, err := n.Process(context.Background(), fctx, nil)
	require.ErrorIs(t, err, ErrNoTopics)
	assert.Empty(t, fctx.Topics)
	assert.Len(t, fctx.InterestTopics, 400)
}
