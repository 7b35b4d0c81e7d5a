package recall

import (
	"context"

	"github.com/rushteam/feedrank/core"
)

// DefaultColdStartMultiplier 冷启动时按 limit 的倍数取全局重要合约。
const DefaultColdStartMultiplier = 4

// Importance 是已登录但没有兴趣数据的用户的冷启动路径：
// 不加任何过滤，按 importance 降序取 limit × Multiplier 个，reason 均为 importance。
type Importance struct {
	Store      core.ContentStore
	Multiplier int
}

func (r *Importance) Name() string { return "fallback.importance" }

func (r *Importance) Rank(ctx context.Context, req *core.FeedRequest) (*core.FeedResult, error) {
	m := r.Multiplier
	if m <= 0 {
		m = DefaultColdStartMultiplier
	}
	contracts, err := r.Store.QueryGlobalTrending(ctx, &core.TrendingQuery{
		Limit:  req.Limit * m,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, err
	}
	return reasonResult(contracts, core.ReasonImportance), nil
}

// Trending 是匿名用户的热门路径：只加质量门槛，按 importance 降序取 limit 个，reason 均为 trending。
type Trending struct {
	Store      core.ContentStore
	Predicates []core.Predicate
}

func (r *Trending) Name() string { return "fallback.trending" }

func (r *Trending) Rank(ctx context.Context, req *core.FeedRequest) (*core.FeedResult, error) {
	contracts, err := r.Store.QueryGlobalTrending(ctx, &core.TrendingQuery{
		Predicates: r.Predicates,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, err
	}
	return reasonResult(contracts, core.ReasonTrending), nil
}

// reasonResult 构造单一 reason 的结果，重复 ID 只保留第一次出现。
func reasonResult(contracts []*core.Contract, reason string) *core.FeedResult {
	res := core.NewFeedResult()
	for _, c := range contracts {
		if c == nil {
			continue
		}
		if _, dup := res.IDsToReason[c.ID]; dup {
			continue
		}
		res.Contracts = append(res.Contracts, c)
		res.IDsToReason[c.ID] = reason
	}
	return res
}
