package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/feedrank/core"
)

// Hook 在每个 Node 执行完成后回调，用于打点 / 日志。
type Hook func(node Node, in, out int, elapsed time.Duration, err error)

// Pipeline 把个性化排序拆成可组合的 Node 链：prepare -> recall -> rerank。
type Pipeline struct {
	Nodes []Node
	Hooks []Hook
}

// Run 顺序执行各 Node；任一 Node 失败即整体失败，不返回部分结果。
func (p *Pipeline) Run(
	ctx context.Context,
	fctx *core.FeedContext,
	cands []*core.Candidate,
) ([]*core.Candidate, error) {
	cur := cands
	for _, node := range p.Nodes {
		start := time.Now()
		next, err := node.Process(ctx, fctx, cur)
		for _, h := range p.Hooks {
			h(node, len(cur), len(next), time.Since(start), err)
		}
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", node.Kind(), node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
