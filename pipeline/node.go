package pipeline

import (
	"context"

	"github.com/rushteam/feedrank/core"
)

// Kind 用于标记 Node 类型，方便观测 / 打点（例如按阶段统计耗时）。
type Kind string

const (
	KindRecall  Kind = "recall"  // 召回阶段：并发生成候选池
	KindFilter  Kind = "filter"  // 过滤阶段：剔除不符合约束的候选
	KindReRank  Kind = "rerank"  // 重排阶段：合并、去重、打 reason
	KindPrepare Kind = "prepare" // 准备阶段：话题截断、谓词构建等只写 FeedContext 的步骤
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"输入候选 -> 输出候选"的形态；FeedContext 在 prepare 阶段写入，之后只读。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		fctx *core.FeedContext,
		cands []*core.Candidate,
	) ([]*core.Candidate, error)
}

// NodeFunc 把普通函数适配为 Node，测试与小步骤常用。
type NodeFunc struct {
	NodeName string
	NodeKind Kind
	Fn       func(ctx context.Context, fctx *core.FeedContext, cands []*core.Candidate) ([]*core.Candidate, error)
}

func (f NodeFunc) Name() string { return f.NodeName }
func (f NodeFunc) Kind() Kind   { return f.NodeKind }

func (f NodeFunc) Process(ctx context.Context, fctx *core.FeedContext, cands []*core.Candidate) ([]*core.Candidate, error) {
	return f.Fn(ctx, fctx, cands)
}
