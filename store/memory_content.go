package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
)

// MemoryContentStore 是内存实现的内容存储，用于测试 / 开发 / 单机演示。
//
// 实现：
//   - core.ContentStore（话题加权 / 关注作者 / 全局热门）
//   - core.RepostProvider（关注转发 / 话题转发）
//   - core.ProfileBuilder、core.ActiveUserLister（画像构建与预热）
//   - topic.ActivitySource（热门话题刷新）
//
// 谓词在内存中按顺序求值（filter.MatchAll）；not_seen 先查布隆过滤器，命中再以 views 为准。
type MemoryContentStore struct {
	mu sync.RWMutex

	contracts map[string]*core.Contract
	order     []string // 插入顺序，保证同分结果稳定

	follows      map[string]map[string]struct{} // user -> followed users
	disinterests map[string]map[string]struct{} // user -> contracts
	views        map[string]map[string]time.Time
	seen         *filter.SeenIndex

	comments map[string]*core.Comment
	bets     map[string]*core.Bet
	posts    []*core.Repost

	interests map[string]core.TopicProfile   // 预计算的话题兴趣
	members   map[string]map[string]struct{} // user -> 加入的话题

	opts RepostOptions
	now  func() time.Time
}

var (
	_ core.ContentStore     = (*MemoryContentStore)(nil)
	_ core.RepostProvider   = (*MemoryContentStore)(nil)
	_ core.ProfileBuilder   = (*MemoryContentStore)(nil)
	_ core.ActiveUserLister = (*MemoryContentStore)(nil)
	_ filter.Facts          = (*MemoryContentStore)(nil)
)

// NewMemoryContentStore 创建内存内容存储。
func NewMemoryContentStore(opts RepostOptions) *MemoryContentStore {
	if opts.Window <= 0 {
		opts.Window = DefaultRepostWindow
	}
	return &MemoryContentStore{
		contracts:    make(map[string]*core.Contract),
		follows:      make(map[string]map[string]struct{}),
		disinterests: make(map[string]map[string]struct{}),
		views:        make(map[string]map[string]time.Time),
		seen:         filter.NewSeenIndex(0, 0),
		comments:     make(map[string]*core.Comment),
		bets:         make(map[string]*core.Bet),
		interests:    make(map[string]core.TopicProfile),
		members:      make(map[string]map[string]struct{}),
		opts:         opts,
		now:          time.Now,
	}
}

// SetClock 替换时钟（测试用）。
func (s *MemoryContentStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryContentStore) Name() string { return "memory_content" }

// 写入方法

func (s *MemoryContentStore) PutContract(c *core.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.contracts[c.ID] = c
}

func (s *MemoryContentStore) Follow(userID, followID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.follows, userID, followID)
}

func (s *MemoryContentStore) MarkDisinterested(userID, contractID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.disinterests, userID, contractID)
}

// RecordView 记录浏览，保留最近一次时间。
func (s *MemoryContentStore) RecordView(userID, contractID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.views[userID] == nil {
		s.views[userID] = make(map[string]time.Time)
	}
	if prev, ok := s.views[userID][contractID]; !ok || at.After(prev) {
		s.views[userID][contractID] = at
	}
	s.seen.Add(userID, contractID)
}

func (s *MemoryContentStore) PutComment(c *core.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = c
}

func (s *MemoryContentStore) PutBet(b *core.Bet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets[b.ID] = b
}

func (s *MemoryContentStore) PutRepost(r *core.Repost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, r)
}

// SetTopicInterests 写入预计算的话题兴趣（按分数降序）。
func (s *MemoryContentStore) SetTopicInterests(userID string, profile core.TopicProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interests[userID] = profile.Clone()
}

// JoinGroup 记录用户加入（关注）话题。
func (s *MemoryContentStore) JoinGroup(userID, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.members, userID, groupID)
}

// filter.Facts，调用方需持有读锁

// Seen 先用布隆过滤器排除绝大多数未看过的合约，命中后再查 views 确认，不会误判。
func (s *MemoryContentStore) Seen(userID, contractID string) bool {
	if !s.seen.Has(userID, contractID) {
		return false
	}
	_, ok := s.views[userID][contractID]
	return ok
}

func (s *MemoryContentStore) Disinterested(userID, contractID string) bool {
	_, ok := s.disinterests[userID][contractID]
	return ok
}

func (s *MemoryContentStore) Follows(userID, creatorID string) bool {
	_, ok := s.follows[userID][creatorID]
	return ok
}

// core.ContentStore

type scoredRow struct {
	row   core.ScoredContract
	score float64
}

// topicRows 返回满足谓词且命中至少一个话题的合约，TopicScore 为命中话题权重均值。
func (s *MemoryContentStore) topicRows(q *core.CandidateQuery, preds []core.Predicate) ([]scoredRow, error) {
	now := s.now()
	var out []scoredRow
	for _, id := range s.order {
		c := s.contracts[id]
		var weights []float64
		for _, tw := range q.Topics {
			if c.InGroup(tw.TopicID) {
				weights = append(weights, tw.Weight)
			}
		}
		if len(weights) == 0 {
			continue
		}
		ok, err := filter.MatchAll(preds, c, s, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		avg := mean(weights)
		out = append(out, scoredRow{row: core.ScoredContract{Contract: c, TopicScore: &avg}, score: avg})
	}
	return out, nil
}

func (s *MemoryContentStore) QueryTopicWeighted(_ context.Context, q *core.CandidateQuery) ([]core.ScoredContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.topicRows(q, q.Predicates)
	if err != nil {
		return nil, err
	}
	// avg(topic × conversion × freshness) == avg(topic) × conversion × freshness
	sort.SliceStable(rows, func(i, j int) bool {
		return composite(rows[i]) > composite(rows[j])
	})
	return unwrap(Paginate(rows, q.Limit, q.Offset)), nil
}

func (s *MemoryContentStore) QueryFollowed(_ context.Context, q *core.CandidateQuery) ([]core.ScoredContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	preds := append(append([]core.Predicate(nil), q.Predicates...), core.CreatorFollowedBy(q.UserID))
	rows, err := s.topicRows(q, preds)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].row.Contract.ConversionScore > rows[j].row.Contract.ConversionScore
	})
	return unwrap(Paginate(rows, q.Limit, q.Offset)), nil
}

func (s *MemoryContentStore) QueryGlobalTrending(_ context.Context, q *core.TrendingQuery) ([]*core.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []*core.Contract
	for _, id := range s.order {
		c := s.contracts[id]
		ok, err := filter.MatchAll(q.Predicates, c, s, now)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ImportanceScore > out[j].ImportanceScore
	})
	return Paginate(out, q.Limit, q.Offset), nil
}

func composite(r scoredRow) float64 {
	return r.score * r.row.Contract.ConversionScore * r.row.Contract.FreshnessScore
}

func unwrap(rows []scoredRow) []core.ScoredContract {
	out := make([]core.ScoredContract, len(rows))
	for i, r := range rows {
		out[i] = r.row
	}
	return out
}

// core.RepostProvider

type repostRow struct {
	post     *core.Repost
	contract *core.Contract
	comment  *core.Comment
	score    float64 // 话题分
	order    float64 // 排序键
}

// eligiblePost 检查转发的公共条件，返回合约与评论。
func (s *MemoryContentStore) eligiblePost(p *core.Repost, userID string, block []core.Predicate, now time.Time) (*core.Contract, *core.Comment, bool, error) {
	if !p.CreatedTime.After(now.Add(-s.opts.Window)) {
		return nil, nil, false, nil
	}
	c, ok := s.contracts[p.ContractID]
	if !ok || len(c.GroupIDs) == 0 {
		return nil, nil, false, nil
	}
	comment, ok := s.comments[p.CommentID]
	if !ok || comment.Hidden {
		return nil, nil, false, nil
	}
	// 转发之后已经看过该合约则跳过
	if at, viewed := s.views[userID][c.ID]; viewed && p.CreatedTime.Before(at) {
		return nil, nil, false, nil
	}
	if !c.IsOpen(now) || c.Visibility != core.VisibilityPublic || c.OutcomeType == core.OutcomeTypeStonk {
		return nil, nil, false, nil
	}
	if s.Disinterested(userID, c.ID) {
		return nil, nil, false, nil
	}
	pass, err := filter.MatchAll(block, c, s, now)
	if err != nil || !pass {
		return nil, nil, false, err
	}
	return c, comment, true, nil
}

func (s *MemoryContentStore) FollowedReposts(_ context.Context, q *core.RepostQuery) ([]*core.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	weights := q.Topics.Map()
	var rows []repostRow
	for _, p := range s.posts {
		if !s.Follows(q.UserID, p.UserID) {
			continue
		}
		c, comment, ok, err := s.eligiblePost(p, q.UserID, q.Block, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var ws []float64
		for _, g := range c.GroupIDs {
			if w, ok := weights[g]; ok {
				ws = append(ws, w)
			}
		}
		score := s.opts.ScorePrior
		if len(ws) > 0 {
			score = mean(ws)
		}
		rows = append(rows, repostRow{post: p, contract: c, comment: comment, score: score,
			order: float64(p.CreatedTime.UnixNano())})
	}
	return s.repostCandidates(rows, q, core.SourceRepostFollowed)
}

func (s *MemoryContentStore) TopicReposts(_ context.Context, q *core.RepostQuery) ([]*core.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var rows []repostRow
	for _, p := range s.posts {
		if s.Follows(q.UserID, p.UserID) {
			continue
		}
		c, comment, ok, err := s.eligiblePost(p, q.UserID, q.Block, now)
		if err != nil {
			return nil, err
		}
		if !ok || comment.Likes <= s.opts.LikesThreshold(comment.UserID) {
			continue
		}
		var ws []float64
		for _, tw := range q.Topics {
			if tw.Weight > s.opts.MinTopicScore && c.InGroup(tw.TopicID) {
				ws = append(ws, tw.Weight)
			}
		}
		if len(ws) == 0 {
			continue
		}
		score := mean(ws)
		rows = append(rows, repostRow{post: p, contract: c, comment: comment, score: score,
			order: score * c.ConversionScore})
	}
	return s.repostCandidates(rows, q, core.SourceRepostTopic)
}

func (s *MemoryContentStore) repostCandidates(rows []repostRow, q *core.RepostQuery, source core.Source) ([]*core.Candidate, error) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].order > rows[j].order })
	rows = Paginate(rows, q.Limit, q.Offset)

	out := make([]*core.Candidate, 0, len(rows))
	for _, r := range rows {
		comment := *r.comment
		repost := *r.post
		var bet *core.Bet
		if comment.BetID != "" {
			if b, ok := s.bets[comment.BetID]; ok {
				copied := *b
				bet = &copied
			}
		}
		cand, err := NewRepostCandidate(r.contract, &comment, bet, &repost, source, r.score)
		if err != nil {
			return nil, err
		}
		out = append(out, cand)
	}
	return out, nil
}

// core.ProfileBuilder

// Build 读取预计算兴趣（最多 MaxInterestTopics 个），再为每个加入的话题加 1。
func (s *MemoryContentStore) Build(_ context.Context, userID string) (core.TopicProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	base := s.interests[userID]
	if len(base) > MaxInterestTopics {
		base = base[:MaxInterestTopics]
	}
	profile := base.Clone()

	groups := make([]string, 0, len(s.members[userID]))
	for g := range s.members[userID] {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return AddGroupMembership(profile, groups), nil
}

// AddGroupMembership 为每个加入的话题权重加 1，不在画像中的追加到末尾。
func AddGroupMembership(profile core.TopicProfile, groups []string) core.TopicProfile {
	index := make(map[string]int, len(profile))
	for i, tw := range profile {
		index[tw.TopicID] = i
	}
	for _, g := range groups {
		if i, ok := index[g]; ok {
			profile[i].Weight++
			continue
		}
		index[g] = len(profile)
		profile = append(profile, core.TopicWeight{TopicID: g, Weight: 1})
	}
	return profile
}

// core.ActiveUserLister

func (s *MemoryContentStore) ActiveUsers(_ context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for user, vs := range s.views {
		for _, at := range vs {
			if !at.Before(since) {
				out = append(out, user)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// TopicActivity 统计 since 之后创建、仍未关闭的合约，按话题累加 importance。
func (s *MemoryContentStore) TopicActivity(_ context.Context, since time.Time) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := make(map[string]float64)
	for _, c := range s.contracts {
		if c.CreatedTime.Before(since) || !c.IsOpen(now) {
			continue
		}
		for _, g := range c.GroupIDs {
			out[g] += c.ImportanceScore
		}
	}
	return out, nil
}

func addTo(m map[string]map[string]struct{}, k, v string) {
	if m[k] == nil {
		m[k] = make(map[string]struct{})
	}
	m[k][v] = struct{}{}
}
