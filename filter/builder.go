package filter

import (
	"github.com/rushteam/feedrank/core"
)

// DefaultExcludedOutcomeTypes 是不进入 Feed 的结果类型。
var DefaultExcludedOutcomeTypes = []string{core.OutcomeTypeStonk, core.OutcomeTypeBountiedQuestion}

// Builder 为一次请求构建有序的过滤谓词列表。
// 构建一次，话题加权召回与关注召回共用；屏蔽子集传给转发召回。
type Builder struct {
	// AlwaysBlockedUserIDs 是启动时加载的全局屏蔽作者，并入每个请求的 creator_not_in
	AlwaysBlockedUserIDs []string

	// ExcludedOutcomeTypes 为空时使用 DefaultExcludedOutcomeTypes
	ExcludedOutcomeTypes []string

	// QualityExprs 是额外的 CEL 质量门槛，见 pkg/dsl
	QualityExprs []string
}

// Set 是一次请求的谓词集合。
type Set struct {
	// All 是完整的有序谓词
	All []core.Predicate

	// Block 是屏蔽子集：creator_not_in、contract_not_in(屏蔽合约)、group_not_in
	Block []core.Predicate
}

func (b *Builder) excluded() []string {
	if len(b.ExcludedOutcomeTypes) == 0 {
		return DefaultExcludedOutcomeTypes
	}
	return b.ExcludedOutcomeTypes
}

// Build 按固定顺序构建谓词：
// not_seen, open, public, outcome_type_not_in, expr..., not_disinterested,
// contract_not_in(ignore), creator_not_in, contract_not_in(blocked), group_not_in。
// 空列表的 *_not_in 谓词不生成。
func (b *Builder) Build(req *core.FeedRequest) Set {
	all := []core.Predicate{
		core.NotSeen(req.UserID),
		core.Open(),
		core.Public(),
		core.OutcomeTypeNotIn(b.excluded()...),
	}
	for _, e := range b.QualityExprs {
		all = append(all, core.Expr(e))
	}
	all = append(all, core.NotDisinterested(req.UserID))
	if len(req.IgnoreContractIDs) > 0 {
		all = append(all, core.ContractNotIn(req.IgnoreContractIDs...))
	}

	block := b.BlockPredicates(req)
	all = append(all, block...)
	return Set{All: all, Block: block}
}

// BlockPredicates 返回屏蔽谓词子集。
func (b *Builder) BlockPredicates(req *core.FeedRequest) []core.Predicate {
	var block []core.Predicate
	if creators := union(req.BlockedUserIDs, b.AlwaysBlockedUserIDs); len(creators) > 0 {
		block = append(block, core.CreatorNotIn(creators...))
	}
	if len(req.BlockedContractIDs) > 0 {
		block = append(block, core.ContractNotIn(req.BlockedContractIDs...))
	}
	if len(req.BlockedGroupIDs) > 0 {
		block = append(block, core.GroupNotIn(req.BlockedGroupIDs...))
	}
	return block
}

// Anonymous 返回匿名热门使用的谓词：仅质量门槛，不含用户相关条件。
func (b *Builder) Anonymous() []core.Predicate {
	return []core.Predicate{
		core.Open(),
		core.Public(),
		core.OutcomeTypeNotIn(core.OutcomeTypeStonk, core.OutcomeTypeBountiedQuestion),
	}
}

// union 合并去重，保持首次出现的顺序。
func union(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, l := range lists {
		for _, id := range l {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
