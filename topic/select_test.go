package topic

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/feedrank/core"
)

func makeProfile(n int, weight func(i int) float64) core.TopicProfile {
	p := make(core.TopicProfile, n)
	for i := 0; i < n; i++ {
		p[i] = core.TopicWeight{TopicID: fmt.Sprintf("t%03d", i), Weight: weight(i)}
	}
	return p
}

func TestSelect_CutoffBound(t *testing.T) {
	// 400 个话题，只有 60 个权重高于 prior，且分散在列表各处
	profile := makeProfile(400, func(i int) float64 {
		if i%5 == 0 && i < 300 {
			return 0.5
		}
		return 0.05
	})

	// 老用户但没有热门快照：不注入
	sel, err := Select(profile, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 60, sel.Cutoff)
	assert.Len(t, sel.Topics, 60)
	// 保持原顺序，取前 60 个而不是 60 个高分
	assert.Equal(t, profile[:60], sel.Topics)
	// 截断前的完整列表保留全部 400 个
	assert.Equal(t, profile, sel.All)
}

func TestSelect_CutoffCappedAtMaxTopics(t *testing.T) {
	profile := makeProfile(500, func(int) float64 { return 1 })
	sel, err := Select(profile, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTopics, sel.Cutoff)
}

func TestSelect_PriorIsStrict(t *testing.T) {
	profile := makeProfile(360, func(i int) float64 {
		if i < 10 {
			return 0.2
		}
		return DefaultScorePrior
	})
	sel, err := Select(profile, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 10, sel.Cutoff)
}

func TestSelect_TrendingInjection(t *testing.T) {
	profile := makeProfile(120, func(int) float64 { return 0.3 })
	trending := map[string]float64{
		"t000": 99, // 已在画像中，不注入
		"t001": 98,
	}
	for i := 0; i < 15; i++ {
		trending[fmt.Sprintf("hot%02d", i)] = float64(50 - i)
	}

	sel, err := Select(profile, trending, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 10, sel.Injected)
	require.Len(t, sel.Topics, 130)
	assert.Equal(t, profile, sel.Topics[:120])
	for i := 0; i < 10; i++ {
		got := sel.Topics[120+i]
		assert.Equal(t, fmt.Sprintf("hot%02d", i), got.TopicID)
		assert.Equal(t, float64(50-i), got.Weight)
	}
	// 原画像未被修改
	assert.Len(t, profile, 120)
}

func TestSelect_TrendingTieBreakByID(t *testing.T) {
	profile := makeProfile(DefaultEstablishedMinTopics, func(int) float64 { return 0.3 })
	trending := map[string]float64{"zz": 5, "aa": 5, "mm": 5}
	opts := DefaultOptions()
	opts.MaxTrendingInjected = 2

	sel, err := Select(profile, trending, opts)
	require.NoError(t, err)
	n := len(sel.Topics)
	assert.Equal(t, []string{"aa", "mm"}, sel.Topics[n-2:].IDs())
}

func TestSelect_NewUserNoInjection(t *testing.T) {
	profile := core.TopicProfile{{TopicID: "A", Weight: 0.9}, {TopicID: "B", Weight: 0.2}}
	sel, err := Select(profile, map[string]float64{"C": 10}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, sel.Injected)
	assert.Equal(t, profile, sel.Topics)
	assert.Equal(t, 2, sel.Cutoff)
}

func TestSelect_NoTopics(t *testing.T) {
	tests := []struct {
		name    string
		profile core.TopicProfile
	}{
		{name: "empty profile", profile: nil},
		{name: "all at or below prior", profile: makeProfile(400, func(int) float64 { return 0.01 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := Select(tt.profile, nil, DefaultOptions())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNoTopics)
			assert.True(t, core.IsNoTopics(err))
			require.NotNil(t, sel)
			assert.Empty(t, sel.Topics)
			assert.Len(t, sel.All, len(tt.profile))
		})
	}
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	bad := DefaultOptions()
	bad.MaxTopics = 0
	assert.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.ScorePrior = -1
	assert.Error(t, bad.Validate())
}
