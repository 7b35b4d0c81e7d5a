package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/store"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts store.RepostOptions) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "feed.db"), opts, zerolog.Nop())
	require.NoError(t, err)
	s.SetClock(func() time.Time { return testNow })
	t.Cleanup(func() { _ = s.Close() })
	return s
}

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

func put(t *testing.T, s *Store, cs ...*core.Contract) {
	t.Helper()
	for _, c := range cs {
		require.NoError(t, s.PutContract(context.Background(), c))
	}
}

func ids(rows []core.ScoredContract) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Contract.ID
	}
	return out
}

func TestCompile(t *testing.T) {
	cl, err := compile([]core.Predicate{
		core.Open(),
		core.CreatorNotIn(),
		core.ContractNotIn("a", "b"),
		core.Expr("contract.view_count > 1"),
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, "c.close_time > ? AND c.id NOT IN (?,?)", cl.where())
	assert.Equal(t, []any{testNow.UnixMilli(), "a", "b"}, cl.args)
	assert.Len(t, cl.exprs, 1)

	_, err = compile([]core.Predicate{{Name: "bogus"}}, testNow)
	assert.ErrorIs(t, err, &core.DomainError{Module: core.ModuleStore, Code: core.ErrorCodeNotSupported})

	empty, err := compile(nil, testNow)
	require.NoError(t, err)
	assert.Equal(t, "1=1", empty.where())
}

func TestStore_QueryTopicWeighted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.DefaultRepostOptions())
	put(t, s,
		openContract("c1", "alice", 0.5, 1, 0, "A"),
		openContract("c2", "bob", 0.9, 1, 0, "A", "B"),
		openContract("c3", "carol", 1, 1, 0, "B"),
		openContract("c4", "dave", 1, 1, 0, "Z"),
		openContract("seen", "erin", 1, 1, 0, "A"),
		openContract("dis", "erin", 1, 1, 0, "A"),
	)
	require.NoError(t, s.RecordView(ctx, "u1", "seen", testNow.Add(-time.Minute)))
	require.NoError(t, s.MarkDisinterested(ctx, "u1", "dis"))

	q := &core.CandidateQuery{
		UserID:     "u1",
		Topics:     core.TopicProfile{{TopicID: "A", Weight: 0.9}, {TopicID: "B", Weight: 0.2}},
		Predicates: []core.Predicate{core.NotSeen("u1"), core.Open(), core.Public(), core.NotDisinterested("u1")},
		Limit:      10,
	}
	rows, err := s.QueryTopicWeighted(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1", "c3"}, ids(rows))
	require.NotNil(t, rows[0].TopicScore)
	assert.InDelta(t, 0.55, *rows[0].TopicScore, 1e-9)
	assert.Equal(t, []string{"A", "B"}, rows[0].Contract.GroupIDs)
	assert.True(t, rows[0].Contract.CloseTime.Equal(testNow.Add(24*time.Hour)))

	q.Limit, q.Offset = 1, 1
	rows, err = s.QueryTopicWeighted(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids(rows))
}

func TestStore_QueryTopicWeightedWithExpr(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.DefaultRepostOptions())
	hot := openContract("hot", "a", 0.1, 1, 0, "A")
	hot.ViewCount = 100
	put(t, s, openContract("cold", "a", 1, 1, 0, "A"), hot)

	rows, err := s.QueryTopicWeighted(ctx, &core.CandidateQuery{
		UserID:     "u1",
		Topics:     core.TopicProfile{{TopicID: "A", Weight: 1}},
		Predicates: []core.Predicate{core.Expr("contract.view_count >= 10")},
		Limit:      5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hot"}, ids(rows))
}

func TestStore_QueryFollowedAndBlocks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.DefaultRepostOptions())
	put(t, s,
		openContract("c1", "alice", 0.3, 1, 0, "A"),
		openContract("c2", "alice", 0.8, 1, 0, "A"),
		openContract("c3", "bob", 0.9, 1, 0, "A"),
		openContract("c4", "alice", 0.9, 1, 0, "A", "G"),
	)
	require.NoError(t, s.Follow(ctx, "u1", "alice"))

	rows, err := s.QueryFollowed(ctx, &core.CandidateQuery{
		UserID:     "u1",
		Topics:     core.TopicProfile{{TopicID: "A", Weight: 0.5}},
		Predicates: []core.Predicate{core.GroupNotIn("G")},
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1"}, ids(rows))
}

func TestStore_QueryGlobalTrending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.DefaultRepostOptions())
	stonk := openContract("stonk", "a", 1, 1, 5)
	stonk.OutcomeType = core.OutcomeTypeStonk
	closed := openContract("closed", "a", 1, 1, 7)
	closed.CloseTime = testNow.Add(-time.Hour)
	private := openContract("private", "a", 1, 1, 8)
	private.Visibility = core.VisibilityPrivate
	put(t, s, openContract("low", "a", 1, 1, 1), openContract("high", "a", 1, 1, 9), stonk, closed, private)

	all, err := s.QueryGlobalTrending(ctx, &core.TrendingQuery{Limit: 3})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "high", all[0].ID)
	assert.Equal(t, "private", all[1].ID)

	filtered, err := s.QueryGlobalTrending(ctx, &core.TrendingQuery{
		Predicates: []core.Predicate{core.Open(), core.Public(), core.OutcomeTypeNotIn(core.OutcomeTypeStonk, core.OutcomeTypeBountiedQuestion)},
		Limit:      10,
	})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "high", filtered[0].ID)
	assert.Equal(t, "low", filtered[1].ID)
}

func seedReposts(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	put(t, s,
		openContract("c1", "x", 0.5, 0.2, 1, "A", "B"),
		openContract("c2", "x", 0.9, 0.2, 1, "B"),
		openContract("c3", "x", 0.9, 0.2, 1, "Z"),
		openContract("nogroup", "x", 0.9, 0.2, 1),
	)
	require.NoError(t, s.PutBet(ctx, &core.Bet{ID: "bet1", ContractID: "c1", UserID: "friend", Amount: 10, CreatedTime: testNow}))
	for _, c := range []*core.Comment{
		{ID: "k1", ContractID: "c1", UserID: "friend", Likes: 3, BetID: "bet1"},
		{ID: "k2", ContractID: "c2", UserID: "friend", Likes: 0},
		{ID: "k3", ContractID: "c3", UserID: "friend", Likes: 0},
		{ID: "k4", ContractID: "c1", UserID: "stranger", Likes: 2},
		{ID: "k5", ContractID: "c2", UserID: "strict", Likes: 1},
		{ID: "k6", ContractID: "c2", UserID: "stranger", Likes: 5, Hidden: true},
		{ID: "k7", ContractID: "nogroup", UserID: "friend", Likes: 9},
	} {
		c.CreatedTime = testNow.Add(-5 * time.Hour)
		require.NoError(t, s.PutComment(ctx, c))
	}
	require.NoError(t, s.Follow(ctx, "u1", "friend"))
	for _, r := range []*core.Repost{
		{ID: "r1", ContractID: "c1", CommentID: "k1", UserID: "friend", CreatedTime: testNow.Add(-3 * time.Hour)},
		{ID: "r2", ContractID: "c2", CommentID: "k2", UserID: "friend", CreatedTime: testNow.Add(-1 * time.Hour)},
		{ID: "r3", ContractID: "c3", CommentID: "k3", UserID: "friend", CreatedTime: testNow.Add(-2 * time.Hour)},
		{ID: "old", ContractID: "c1", CommentID: "k1", UserID: "friend", CreatedTime: testNow.Add(-8 * 24 * time.Hour)},
		{ID: "ng", ContractID: "nogroup", CommentID: "k7", UserID: "friend", CreatedTime: testNow.Add(-time.Hour)},
		{ID: "r4", ContractID: "c1", CommentID: "k4", UserID: "stranger", CreatedTime: testNow.Add(-time.Hour)},
		{ID: "r5", ContractID: "c2", CommentID: "k5", UserID: "strict", CreatedTime: testNow.Add(-time.Hour)},
		{ID: "r6", ContractID: "c2", CommentID: "k6", UserID: "stranger", CreatedTime: testNow.Add(-time.Hour)},
	} {
		require.NoError(t, s.PutRepost(ctx, r))
	}
}

func repostIDs(cands []*core.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Repost.ID
	}
	return out
}

func TestStore_FollowedReposts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.DefaultRepostOptions())
	seedReposts(t, s)
	require.NoError(t, s.RecordView(ctx, "u1", "c2", testNow.Add(-30*time.Minute)))

	cands, err := s.FollowedReposts(ctx, &core.RepostQuery{
		UserID: "u1",
		Limit:  10,
		Topics: core.TopicProfile{{TopicID: "A", Weight: 0.8}, {TopicID: "B", Weight: 0.4}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r1"}, repostIDs(cands))

	r1 := cands[1]
	assert.InDelta(t, 0.6, r1.TopicConversionScore, 1e-9)
	assert.Equal(t, 4.0, r1.Contract.ImportanceScore)
	assert.InDelta(t, 1.2, r1.Contract.FreshnessScore, 1e-9)
	require.NotNil(t, r1.Bet)
	assert.Equal(t, "bet1", r1.Bet.ID)
	assert.Equal(t, 3, r1.Comment.Likes)
	assert.InDelta(t, store.DefaultScorePrior, cands[0].TopicConversionScore, 1e-9)
	assert.Nil(t, cands[0].Bet)

	blocked, err := s.FollowedReposts(ctx, &core.RepostQuery{
		UserID: "u1",
		Limit:  10,
		Block:  []core.Predicate{core.GroupNotIn("Z")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, repostIDs(blocked))
}

func TestStore_TopicReposts(t *testing.T) {
	opts := store.DefaultRepostOptions()
	opts.StrictCommentUserIDs = []string{"strict"}
	s := newTestStore(t, opts)
	seedReposts(t, s)

	cands, err := s.TopicReposts(context.Background(), &core.RepostQuery{
		UserID: "u1",
		Limit:  10,
		Topics: core.TopicProfile{{TopicID: "A", Weight: 0.8}, {TopicID: "B", Weight: 0.4}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"r4"}, repostIDs(cands))
	assert.InDelta(t, 0.8, cands[0].TopicConversionScore, 1e-9)
	assert.Equal(t, core.SourceRepostTopic, cands[0].Source)

	none, err := s.TopicReposts(context.Background(), &core.RepostQuery{
		UserID: "u1",
		Topics: core.TopicProfile{{TopicID: "A", Weight: 0.3}},
	})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_BuildProfileAndActiveUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, store.DefaultRepostOptions())

	require.NoError(t, s.SetTopicInterests(ctx, "u1", core.TopicProfile{{TopicID: "B", Weight: 0.5}, {TopicID: "A", Weight: 0.75}}))
	require.NoError(t, s.JoinGroup(ctx, "u1", "B"))
	require.NoError(t, s.JoinGroup(ctx, "u1", "C"))

	p, err := s.Build(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.TopicProfile{
		{TopicID: "A", Weight: 0.75},
		{TopicID: "B", Weight: 1.5},
		{TopicID: "C", Weight: 1},
	}, p)

	put(t, s, openContract("c1", "x", 1, 1, 2, "A"))
	require.NoError(t, s.RecordView(ctx, "u1", "c1", testNow.Add(-time.Hour)))
	require.NoError(t, s.RecordView(ctx, "u2", "c1", testNow.Add(-90*24*time.Hour)))
	users, err := s.ActiveUsers(ctx, testNow.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)

	act, err := s.TopicActivity(ctx, testNow.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 2}, act)
}
