package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openContract(id, creator string, conv, fresh, importance float64, groups ...string) *core.Contract {
	return &core.Contract{
		ID:              id,
		CreatorID:       creator,
		OutcomeType:     core.OutcomeTypeBinary,
		Visibility:      core.VisibilityPublic,
		CloseTime:       testNow.Add(24 * time.Hour),
		CreatedTime:     testNow.Add(-time.Hour),
		GroupIDs:        groups,
		ConversionScore: conv,
		FreshnessScore:  fresh,
		ImportanceScore: importance,
	}
}

func newContentStore() *MemoryContentStore {
	s := NewMemoryContentStore(DefaultRepostOptions())
	s.SetClock(func() time.Time { return testNow })
	return s
}

func contractIDs(rows []core.ScoredContract) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Contract.ID
	}
	return out
}

func TestMemoryContentStore_QueryTopicWeighted(t *testing.T) {
	ctx := context.Background()
	s := newContentStore()
	s.PutContract(openContract("c1", "alice", 0.5, 1, 0, "A"))      // 0.9*0.5 = 0.45
	s.PutContract(openContract("c2", "bob", 0.9, 1, 0, "A", "B"))    // avg(0.9,0.2)=0.55*0.9 = 0.495
	s.PutContract(openContract("c3", "carol", 1, 1, 0, "B"))         // 0.2
	s.PutContract(openContract("c4", "dave", 1, 1, 0, "Z"))          // 不在话题中
	s.PutContract(openContract("seen", "erin", 1, 1, 0, "A"))        // 已浏览
	s.PutContract(openContract("dis", "erin", 1, 1, 0, "A"))         // 不感兴趣
	s.RecordView("u1", "seen", testNow.Add(-time.Minute))
	s.MarkDisinterested("u1", "dis")

	q := &core.CandidateQuery{
		UserID:     "u1",
		Topics:     core.TopicProfile{{TopicID: "A", Weight: 0.9}, {TopicID: "B", Weight: 0.2}},
		Predicates: []core.Predicate{core.NotSeen("u1"), core.Open(), core.NotDisinterested("u1")},
		Limit:      10,
	}
	rows, err := s.QueryTopicWeighted(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1", "c3"}, contractIDs(rows))
	require.NotNil(t, rows[0].TopicScore)
	assert.InDelta(t, 0.55, *rows[0].TopicScore, 1e-9)

	q.Limit, q.Offset = 1, 1
	rows, err = s.QueryTopicWeighted(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, contractIDs(rows))
}

func TestMemoryContentStore_QueryFollowed(t *testing.T) {
	ctx := context.Background()
	s := newContentStore()
	s.PutContract(openContract("c1", "alice", 0.3, 1, 0, "A"))
	s.PutContract(openContract("c2", "alice", 0.8, 1, 0, "A"))
	s.PutContract(openContract("c3", "bob", 0.9, 1, 0, "A"))
	s.Follow("u1", "alice")

	rows, err := s.QueryFollowed(ctx, &core.CandidateQuery{
		UserID: "u1",
		Topics: core.TopicProfile{{TopicID: "A", Weight: 0.5}},
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1"}, contractIDs(rows))
}

func TestMemoryContentStore_QueryGlobalTrending(t *testing.T) {
	ctx := context.Background()
	s := newContentStore()
	s.PutContract(openContract("low", "a", 1, 1, 1))
	s.PutContract(openContract("high", "a", 1, 1, 9))
	stonk := openContract("stonk", "a", 1, 1, 5)
	stonk.OutcomeType = core.OutcomeTypeStonk
	s.PutContract(stonk)
	closed := openContract("closed", "a", 1, 1, 7)
	closed.CloseTime = testNow.Add(-time.Hour)
	s.PutContract(closed)

	all, err := s.QueryGlobalTrending(ctx, &core.TrendingQuery{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "high", all[0].ID)

	filtered, err := s.QueryGlobalTrending(ctx, &core.TrendingQuery{
		Predicates: []core.Predicate{core.Open(), core.Public(), core.OutcomeTypeNotIn(core.OutcomeTypeStonk)},
		Limit:      10,
	})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "high", filtered[0].ID)
	assert.Equal(t, "low", filtered[1].ID)
}

func TestMemoryContentStore_UnsupportedPredicate(t *testing.T) {
	s := newContentStore()
	s.PutContract(openContract("c1", "a", 1, 1, 1))
	_, err := s.QueryGlobalTrending(context.Background(), &core.TrendingQuery{
		Predicates: []core.Predicate{{Name: "unknown"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, &core.DomainError{Module: core.ModuleStore, Code: core.ErrorCodeNotSupported})
}

func TestMemoryContentStore_SeenIsExact(t *testing.T) {
	s := newContentStore()
	// 容量极小的过滤器很快饱和，几乎对所有合约都报命中
	s.seen = filter.NewSeenIndex(1, 0.9)
	for i := 0; i < 50; i++ {
		s.RecordView("u1", fmt.Sprintf("viewed%d", i), testNow)
	}
	require.True(t, s.seen.Has("u1", "never-viewed"))

	for i := 0; i < 50; i++ {
		assert.True(t, s.Seen("u1", fmt.Sprintf("viewed%d", i)))
		assert.False(t, s.Seen("u1", fmt.Sprintf("unviewed%d", i)))
	}
	assert.False(t, s.Seen("u2", "viewed0"))
}

func seedReposts(s *MemoryContentStore) {
	s.PutContract(openContract("c1", "x", 0.5, 0.2, 1, "A", "B"))
	s.PutContract(openContract("c2", "x", 0.9, 0.2, 1, "B"))
	s.PutContract(openContract("c3", "x", 0.9, 0.2, 1, "Z"))
	s.PutContract(openContract("nogroup", "x", 0.9, 0.2, 1))

	s.PutBet(&core.Bet{ID: "bet1", ContractID: "c1", Amount: 10})
	s.PutComment(&core.Comment{ID: "k1", ContractID: "c1", UserID: "friend", Likes: 3, BetID: "bet1"})
	s.PutComment(&core.Comment{ID: "k2", ContractID: "c2", UserID: "friend", Likes: 0})
	s.PutComment(&core.Comment{ID: "k3", ContractID: "c3", UserID: "friend", Likes: 0})
	s.PutComment(&core.Comment{ID: "k4", ContractID: "c1", UserID: "stranger", Likes: 2})
	s.PutComment(&core.Comment{ID: "k5", ContractID: "c2", UserID: "strict", Likes: 1})
	s.PutComment(&core.Comment{ID: "k6", ContractID: "c2", UserID: "stranger", Likes: 5, Hidden: true})
	s.PutComment(&core.Comment{ID: "k7", ContractID: "nogroup", UserID: "friend", Likes: 9})

	s.Follow("u1", "friend")

	s.PutRepost(&core.Repost{ID: "r1", ContractID: "c1", CommentID: "k1", UserID: "friend", CreatedTime: testNow.Add(-3 * time.Hour)})
	s.PutRepost(&core.Repost{ID: "r2", ContractID: "c2", CommentID: "k2", UserID: "friend", CreatedTime: testNow.Add(-1 * time.Hour)})
	s.PutRepost(&core.Repost{ID: "r3", ContractID: "c3", CommentID: "k3", UserID: "friend", CreatedTime: testNow.Add(-2 * time.Hour)})
	s.PutRepost(&core.Repost{ID: "old", ContractID: "c1", CommentID: "k1", UserID: "friend", CreatedTime: testNow.Add(-8 * 24 * time.Hour)})
	s.PutRepost(&core.Repost{ID: "ng", ContractID: "nogroup", CommentID: "k7", UserID: "friend", CreatedTime: testNow.Add(-time.Hour)})
	s.PutRepost(&core.Repost{ID: "r4", ContractID: "c1", CommentID: "k4", UserID: "stranger", CreatedTime: testNow.Add(-time.Hour)})
	s.PutRepost(&core.Repost{ID: "r5", ContractID: "c2", CommentID: "k5", UserID: "strict", CreatedTime: testNow.Add(-time.Hour)})
	s.PutRepost(&core.Repost{ID: "r6", ContractID: "c2", CommentID: "k6", UserID: "stranger", CreatedTime: testNow.Add(-time.Hour)})
}

func repostIDs(cands []*core.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Repost.ID
	}
	return out
}

func TestMemoryContentStore_FollowedReposts(t *testing.T) {
	s := newContentStore()
	seedReposts(s)

	cands, err := s.FollowedReposts(context.Background(), &core.RepostQuery{
		UserID: "u1",
		Limit:  10,
		Topics: core.TopicProfile{{TopicID: "A", Weight: 0.8}, {TopicID: "B", Weight: 0.4}},
	})
	require.NoError(t, err)

	// 按转发时间倒序；过期与无话题的转发被排除
	assert.Equal(t, []string{"r2", "r3", "r1"}, repostIDs(cands))

	byID := map[string]*core.Candidate{}
	for _, c := range cands {
		byID[c.Repost.ID] = c
	}
	assert.InDelta(t, 0.6, byID["r1"].TopicConversionScore, 1e-9)
	assert.InDelta(t, 0.4, byID["r2"].TopicConversionScore, 1e-9)
	assert.InDelta(t, DefaultScorePrior, byID["r3"].TopicConversionScore, 1e-9)

	// importance += 赞数，freshness += 1，原合约不变
	assert.Equal(t, 4.0, byID["r1"].Contract.ImportanceScore)
	assert.InDelta(t, 1.2, byID["r1"].Contract.FreshnessScore, 1e-9)
	require.NotNil(t, byID["r1"].Bet)
	assert.Equal(t, "bet1", byID["r1"].Bet.ID)
	assert.Nil(t, byID["r2"].Bet)
	assert.Equal(t, core.SourceRepostFollowed, byID["r1"].Source)
}

func TestMemoryContentStore_FollowedRepostsSkipsSeenAfterPost(t *testing.T) {
	s := newContentStore()
	seedReposts(s)
	s.RecordView("u1", "c2", testNow.Add(-30*time.Minute)) // r2 之后看过
	s.RecordView("u1", "c1", testNow.Add(-4*time.Hour))    // r1 之前看过

	cands, err := s.FollowedReposts(context.Background(), &core.RepostQuery{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r1"}, repostIDs(cands))
}

func TestMemoryContentStore_TopicReposts(t *testing.T) {
	opts := DefaultRepostOptions()
	opts.StrictCommentUserIDs = []string{"strict"}
	s := NewMemoryContentStore(opts)
	s.SetClock(func() time.Time { return testNow })
	seedReposts(s)

	cands, err := s.TopicReposts(context.Background(), &core.RepostQuery{
		UserID: "u1",
		Limit:  10,
		Topics: core.TopicProfile{{TopicID: "A", Weight: 0.8}, {TopicID: "B", Weight: 0.4}},
	})
	require.NoError(t, err)

	// r4：非关注、赞数 2、命中 A（B 低于门槛）；r5：严格用户赞数 1 不够；r6：评论隐藏
	require.Equal(t, []string{"r4"}, repostIDs(cands))
	assert.InDelta(t, 0.8, cands[0].TopicConversionScore, 1e-9)
	assert.Equal(t, core.SourceRepostTopic, cands[0].Source)
	assert.Equal(t, 2, cands[0].Comment.Likes)
}

func TestMemoryContentStore_RepostBlock(t *testing.T) {
	s := newContentStore()
	seedReposts(s)

	cands, err := s.FollowedReposts(context.Background(), &core.RepostQuery{
		UserID: "u1",
		Limit:  10,
		Block:  []core.Predicate{core.ContractNotIn("c2"), core.GroupNotIn("Z")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, repostIDs(cands))
}

func TestMemoryContentStore_BuildProfile(t *testing.T) {
	s := newContentStore()
	s.SetTopicInterests("u1", core.TopicProfile{{TopicID: "A", Weight: 0.7}, {TopicID: "B", Weight: 0.3}})
	s.JoinGroup("u1", "B")
	s.JoinGroup("u1", "C")

	p, err := s.Build(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, core.TopicProfile{
		{TopicID: "A", Weight: 0.7},
		{TopicID: "B", Weight: 1.3},
		{TopicID: "C", Weight: 1},
	}, p)

	empty, err := s.Build(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestMemoryContentStore_ActiveUsersAndActivity(t *testing.T) {
	ctx := context.Background()
	s := newContentStore()
	s.PutContract(openContract("c1", "x", 1, 1, 2, "A", "B"))
	s.PutContract(openContract("c2", "x", 1, 1, 3, "A"))
	s.RecordView("u1", "c1", testNow.Add(-time.Hour))
	s.RecordView("u2", "c1", testNow.Add(-60*24*time.Hour))

	users, err := s.ActiveUsers(ctx, testNow.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)

	act, err := s.TopicActivity(ctx, testNow.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 5, "B": 2}, act)
}
