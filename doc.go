// Package feedrank 是一个合约 Feed 个性化排序引擎。
//
// 设计要点：
// - Pipeline-first: 个性化分支由 Node 串联（话题选择 → 谓词构建 → 并发召回 → 合并去重）
// - Labels-first: 候选的来源与 reason 通过 labels 透传，合并时标准化
// - 协作方显式注入: 兴趣缓存、内容存储、转发、热门话题均为 core 中的接口
//
// 请求入口见 feed.Engine，HTTP 服务见 cmd/feedrank。
package feedrank

import (
	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/feed"
	"github.com/rushteam/feedrank/pipeline"
)

// 轻量 facade：便于直接 import "feedrank" 使用核心抽象。
type (
	Engine      = feed.Engine
	Deps        = feed.Deps
	Options     = feed.Options
	FeedRequest = core.FeedRequest
	FeedResult  = core.FeedResult
	Node        = pipeline.Node
	Kind        = pipeline.Kind
)

const (
	KindPrepare = pipeline.KindPrepare
	KindRecall  = pipeline.KindRecall
	KindFilter  = pipeline.KindFilter
	KindReRank  = pipeline.KindReRank
)

// New 创建排序引擎，见 feed.New。
func New(deps Deps, opts Options) (*Engine, error) {
	return feed.New(deps, opts)
}
