package filter

import (
	"context"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pipeline"
)

// BuildNode 是 prepare 阶段的 Node：构建一次谓词并写入 FeedContext，
// 之后各召回源只读 FeedContext.Predicates / BlockPredicates。
type BuildNode struct {
	Builder *Builder
}

func (n *BuildNode) Name() string {
	return "filter.build"
}

func (n *BuildNode) Kind() pipeline.Kind {
	return pipeline.KindPrepare
}

func (n *BuildNode) Process(
	_ context.Context,
	fctx *core.FeedContext,
	cands []*core.Candidate,
) ([]*core.Candidate, error) {
	set := n.Builder.Build(fctx.Request)
	if err := Validate(set.All); err != nil {
		return nil, err
	}
	fctx.Predicates = set.All
	fctx.BlockPredicates = set.Block
	return cands, nil
}
