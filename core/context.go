package core

import "github.com/rushteam/feedrank/pkg/utils"

// FeedRequest 是一次 Feed 排序请求。
// UserID 为空表示匿名用户。
type FeedRequest struct {
	RequestID string `json:"requestId,omitempty"`

	UserID string `json:"userId,omitempty"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`

	IgnoreContractIDs  []string `json:"ignoreContractIds,omitempty"`
	BlockedUserIDs     []string `json:"blockedUserIds,omitempty"`
	BlockedGroupIDs    []string `json:"blockedGroupIds,omitempty"`
	BlockedContractIDs []string `json:"blockedContractIds,omitempty"`
}

// Anonymous 判断是否为匿名请求。
func (r *FeedRequest) Anonymous() bool {
	return r == nil || r.UserID == ""
}

// FeedResult 是排序结果。
//
// 不变量：
//   - IDsToReason 的 key 集合与 Contracts 的 ID 集合完全一致
//   - Contracts 中不出现重复 ID
type FeedResult struct {
	Contracts   []*Contract       `json:"contracts"`
	IDsToReason map[string]string `json:"idsToReason"`
	Comments    []*Comment        `json:"comments"`
	Bets        []*Bet            `json:"bets"`
	Reposts     []*Repost         `json:"reposts"`
}

// NewFeedResult 创建一个空结果（side channel 均为非 nil 空切片）。
func NewFeedResult() *FeedResult {
	return &FeedResult{
		Contracts:   make([]*Contract, 0),
		IDsToReason: make(map[string]string),
		Comments:    make([]*Comment, 0),
		Bets:        make([]*Bet, 0),
		Reposts:     make([]*Repost, 0),
	}
}

// FeedContext 承载一次个性化请求的只读快照，贯穿整个 Pipeline 透传。
// Resolver 与 Topic 选择在召回之前完成，此后各召回源只读它。
type FeedContext struct {
	Request *FeedRequest

	// Profile 是缓存中的原始画像（未注入热门话题、未截断）
	Profile TopicProfile

	// InterestTopics 是注入热门话题后、截断前的完整列表，话题转发使用它
	InterestTopics TopicProfile

	// Topics 是注入热门话题并截断后的话题列表
	Topics TopicProfile

	// Predicates 是召回共用的过滤谓词（构建一次，复用）
	Predicates []Predicate

	// BlockPredicates 是传给转发召回的屏蔽谓词子集
	BlockPredicates []Predicate

	// Labels 是请求级标签，例如 established / cold_start
	Labels map[string]utils.Label

	// Result 由合并阶段写入
	Result *FeedResult
}

// UserID 返回请求用户 ID。
func (fctx *FeedContext) UserID() string {
	if fctx == nil || fctx.Request == nil {
		return ""
	}
	return fctx.Request.UserID
}

// PutLabel 写入请求级 Label。
func (fctx *FeedContext) PutLabel(key string, lbl utils.Label) {
	if fctx.Labels == nil {
		fctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := fctx.Labels[key]; ok {
		fctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	fctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (fctx *FeedContext) GetLabel(key string) (utils.Label, bool) {
	if fctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := fctx.Labels[key]
	return lbl, ok
}
