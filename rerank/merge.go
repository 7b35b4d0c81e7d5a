package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/pkg/utils"
)

// ReasonLabelKey 是候选上记录最终 reason 的 Label key。
const ReasonLabelKey = "reason"

// Merge 合并候选池，产出最终结果。
//
// 步骤：
//  1. 按综合分 conversion × freshness × topicConversion 稳定降序（同分保持拼接顺序）
//  2. 按合约 ID 去重，保留第一次出现（即分数最高）的记录
//  3. reason：ID 出现在关注作者召回中为 followed，否则为 trending
//  4. 转发来源候选的评论 / 下注 / 转发按拼接顺序输出，不去重
//
// 返回的结果与去重后存活的候选（与 Contracts 一一对应）。
func Merge(pool []*core.Candidate) (*core.FeedResult, []*core.Candidate) {
	res := core.NewFeedResult()

	followed := make(map[string]struct{})
	for _, c := range pool {
		if c == nil || c.Contract == nil {
			continue
		}
		if c.Source == core.SourceFollowed {
			followed[c.Contract.ID] = struct{}{}
		}
		if c.Source.IsRepost() {
			if c.Comment != nil {
				res.Comments = append(res.Comments, c.Comment)
			}
			if c.Bet != nil {
				res.Bets = append(res.Bets, c.Bet)
			}
			if c.Repost != nil {
				res.Reposts = append(res.Reposts, c.Repost)
			}
		}
	}

	sorted := make([]*core.Candidate, 0, len(pool))
	for _, c := range pool {
		if c != nil && c.Contract != nil {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score() > sorted[j].Score()
	})

	survivors := make([]*core.Candidate, 0, len(sorted))
	for _, c := range sorted {
		id := c.Contract.ID
		if _, dup := res.IDsToReason[id]; dup {
			continue
		}
		reason := core.ReasonTrending
		if _, ok := followed[id]; ok {
			reason = core.ReasonFollowed
		}
		res.Contracts = append(res.Contracts, c.Contract)
		res.IDsToReason[id] = reason
		c.PutLabel(ReasonLabelKey, utils.Label{Value: reason, Source: "rerank"})
		survivors = append(survivors, c)
	}
	return res, survivors
}

// MergeNode 是 rerank 阶段的 Node：执行 Merge，把结果写入 FeedContext.Result，
// 返回去重后的存活候选。
type MergeNode struct{}

func (n *MergeNode) Name() string {
	return "rerank.merge"
}

func (n *MergeNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *MergeNode) Process(
	_ context.Context,
	fctx *core.FeedContext,
	cands []*core.Candidate,
) ([]*core.Candidate, error) {
	res, survivors := Merge(cands)
	fctx.Result = res
	return survivors, nil
}
