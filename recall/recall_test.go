package recall

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/feedrank/core"
)

type staticSource struct {
	name  string
	delay time.Duration
	ids   []string
	err   error
	done  *atomic.Int32
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Recall(ctx context.Context, _ *core.FeedContext) ([]*core.Candidate, error) {
	time.Sleep(s.delay)
	if s.done != nil {
		s.done.Add(1)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*core.Candidate, 0, len(s.ids))
	for _, id := range s.ids {
		c, _ := core.NewCandidate(&core.Contract{ID: id}, core.SourceTrending, 1)
		out = append(out, c)
	}
	return out, nil
}

func ids(cands []*core.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Contract.ID
	}
	return out
}

func TestFanout_ConcatenatesInSourceOrder(t *testing.T) {
	f := &Fanout{Sources: []Source{
		&staticSource{name: "slow", delay: 30 * time.Millisecond, ids: []string{"a", "b"}},
		&staticSource{name: "fast", ids: []string{"c"}},
		&staticSource{name: "mid", delay: 10 * time.Millisecond, ids: []string{"d"}},
	}}

	out, err := f.Process(context.Background(), &core.FeedContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(out))
	assert.Equal(t, "slow", out[0].Labels["recall_source"].Value)
}

func TestFanout_FailsWholeAfterAllFinish(t *testing.T) {
	var done atomic.Int32
	boom := errors.New("db down")
	f := &Fanout{Sources: []Source{
		&staticSource{name: "bad", err: boom, done: &done},
		&staticSource{name: "slow", delay: 30 * time.Millisecond, ids: []string{"a"}, done: &done},
	}}

	out, err := f.Process(context.Background(), &core.FeedContext{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "recall bad")
	assert.Nil(t, out)
	assert.Equal(t, int32(2), done.Load())
}

func TestFanout_IgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &Fanout{Sources: []Source{&staticSource{name: "s", ids: []string{"a"}}}}
	out, err := f.Process(ctx, &core.FeedContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(out))
}

func TestFanout_Observer(t *testing.T) {
	seen := make(chan string, 2)
	f := &Fanout{
		Sources: []Source{
			&staticSource{name: "one", ids: []string{"a"}},
			&staticSource{name: "two", ids: []string{"b", "c"}},
		},
		Observer: func(source string, count int, _ time.Duration, err error) {
			assert.NoError(t, err)
			if source == "two" {
				assert.Equal(t, 2, count)
			}
			seen <- source
		},
	}
	_, err := f.Process(context.Background(), &core.FeedContext{}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, []string{<-seen, <-seen})
}

// fakeStore 记录收到的查询，返回固定结果。
type fakeStore struct {
	rows      []core.ScoredContract
	contracts []*core.Contract
	err       error

	lastCandidate *core.CandidateQuery
	lastTrending  *core.TrendingQuery
}

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) QueryTopicWeighted(_ context.Context, q *core.CandidateQuery) ([]core.ScoredContract, error) {
	s.lastCandidate = q
	return s.rows, s.err
}

func (s *fakeStore) QueryFollowed(_ context.Context, q *core.CandidateQuery) ([]core.ScoredContract, error) {
	s.lastCandidate = q
	return s.rows, s.err
}

func (s *fakeStore) QueryGlobalTrending(_ context.Context, q *core.TrendingQuery) ([]*core.Contract, error) {
	s.lastTrending = q
	return s.contracts, s.err
}

func ptr(v float64) *float64 { return &v }

func personalizedContext() *core.FeedContext {
	return &core.FeedContext{
		Request:         &core.FeedRequest{UserID: "u1", Limit: 20, Offset: 5},
		Profile:         core.TopicProfile{{TopicID: "A", Weight: 0.9}, {TopicID: "B", Weight: 0.2}, {TopicID: "C", Weight: 0.05}},
		InterestTopics:  core.TopicProfile{{TopicID: "A", Weight: 0.9}, {TopicID: "B", Weight: 0.2}, {TopicID: "C", Weight: 0.05}, {TopicID: "T", Weight: 3}},
		Topics:          core.TopicProfile{{TopicID: "A", Weight: 0.9}, {TopicID: "B", Weight: 0.2}},
		Predicates:      []core.Predicate{core.Open()},
		BlockPredicates: []core.Predicate{core.CreatorNotIn("x")},
	}
}

func TestTopicWeighted_BuildsQueryAndCoercesScores(t *testing.T) {
	s := &fakeStore{rows: []core.ScoredContract{
		{Contract: &core.Contract{ID: "a"}, TopicScore: ptr(0.5)},
		{Contract: &core.Contract{ID: "b"}, TopicScore: nil},
		{Contract: &core.Contract{ID: "bad"}, TopicScore: ptr(math.NaN())},
		{Contract: &core.Contract{ID: "neg"}, TopicScore: ptr(-1)},
	}}
	fctx := personalizedContext()

	out, err := (&TopicWeighted{Store: s, Logger: zerolog.Nop()}).Recall(context.Background(), fctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ids(out))
	assert.Equal(t, 0.5, out[0].TopicConversionScore)
	assert.Equal(t, core.DefaultTopicConversionScore, out[1].TopicConversionScore)
	assert.Equal(t, core.SourceTrending, out[0].Source)

	q := s.lastCandidate
	assert.Equal(t, "u1", q.UserID)
	assert.Equal(t, fctx.Topics, q.Topics)
	assert.Equal(t, fctx.Predicates, q.Predicates)
	assert.Equal(t, 20, q.Limit)
	assert.Equal(t, 5, q.Offset)
}

func TestFollowed_SourceAndError(t *testing.T) {
	s := &fakeStore{rows: []core.ScoredContract{{Contract: &core.Contract{ID: "a"}, TopicScore: ptr(0.3)}}}
	out, err := (&Followed{Store: s, Logger: zerolog.Nop()}).Recall(context.Background(), personalizedContext())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, core.SourceFollowed, out[0].Source)

	s.err = errors.New("timeout")
	_, err = (&Followed{Store: s, Logger: zerolog.Nop()}).Recall(context.Background(), personalizedContext())
	assert.Error(t, err)
}

type fakeProvider struct {
	followed, topic []*core.Candidate
	lastFollowed    *core.RepostQuery
	lastTopic       *core.RepostQuery
}

func (p *fakeProvider) FollowedReposts(_ context.Context, q *core.RepostQuery) ([]*core.Candidate, error) {
	p.lastFollowed = q
	return p.followed, nil
}

func (p *fakeProvider) TopicReposts(_ context.Context, q *core.RepostQuery) ([]*core.Candidate, error) {
	p.lastTopic = q
	return p.topic, nil
}

func TestReposts_TopicsAndBlock(t *testing.T) {
	p := &fakeProvider{
		followed: []*core.Candidate{{Contract: &core.Contract{ID: "f"}, TopicConversionScore: 0.1}},
		topic: []*core.Candidate{
			{Contract: &core.Contract{ID: "t"}, TopicConversionScore: 0.6},
			{Contract: nil},
			nil,
		},
	}
	fctx := personalizedContext()
	ctx := context.Background()

	fr, err := (&FollowedReposts{Provider: p, Logger: zerolog.Nop()}).Recall(ctx, fctx)
	require.NoError(t, err)
	tr, err := (&TopicReposts{Provider: p, Logger: zerolog.Nop()}).Recall(ctx, fctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"f"}, ids(fr))
	assert.Equal(t, core.SourceRepostFollowed, fr[0].Source)
	assert.Equal(t, []string{"t"}, ids(tr))
	assert.Equal(t, core.SourceRepostTopic, tr[0].Source)

	// 关注转发拿原始画像，话题转发拿注入后、截断前的完整列表
	assert.Equal(t, fctx.Profile, p.lastFollowed.Topics)
	assert.Equal(t, fctx.InterestTopics, p.lastTopic.Topics)
	assert.Len(t, p.lastTopic.Topics, 4)
	assert.Equal(t, fctx.BlockPredicates, p.lastTopic.Block)
	assert.Equal(t, 20, p.lastFollowed.Limit)
}

func TestImportance_ColdStart(t *testing.T) {
	s := &fakeStore{contracts: []*core.Contract{{ID: "a"}, {ID: "b"}, {ID: "a"}}}
	res, err := (&Importance{Store: s}).Rank(context.Background(), &core.FeedRequest{UserID: "u", Limit: 5, Offset: 10})
	require.NoError(t, err)

	assert.Equal(t, 20, s.lastTrending.Limit)
	assert.Equal(t, 10, s.lastTrending.Offset)
	assert.Empty(t, s.lastTrending.Predicates)
	assert.Len(t, res.Contracts, 2)
	assert.Equal(t, map[string]string{"a": core.ReasonImportance, "b": core.ReasonImportance}, res.IDsToReason)
	assert.Empty(t, res.Comments)
	assert.Empty(t, res.Bets)
	assert.Empty(t, res.Reposts)
}

func TestTrending_Anonymous(t *testing.T) {
	s := &fakeStore{contracts: []*core.Contract{{ID: "a"}}}
	preds := []core.Predicate{core.Open(), core.Public()}
	res, err := (&Trending{Store: s, Predicates: preds}).Rank(context.Background(), &core.FeedRequest{Limit: 7})
	require.NoError(t, err)

	assert.Equal(t, 7, s.lastTrending.Limit)
	assert.Equal(t, preds, s.lastTrending.Predicates)
	assert.Equal(t, core.ReasonTrending, res.IDsToReason["a"])
}
