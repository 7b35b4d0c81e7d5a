package recall

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/pkg/utils"
)

// Observer 在每个召回源结束时回调（打点用）。
type Observer func(source string, count int, elapsed time.Duration, err error)

// Fanout 是一个 Recall Node：并发执行多个召回源，按 Sources 顺序拼接结果。
//
// 语义：
//   - 每个召回源写入自己的槽位，拼接顺序与完成顺序无关
//   - 召回运行在 context.WithoutCancel 上：请求取消不会中断已发出的召回
//   - 任一召回源失败则整体失败，不返回部分结果；所有召回源都会跑完
type Fanout struct {
	Sources  []Source
	Observer Observer
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	fctx *core.FeedContext,
	_ []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	recallCtx := context.WithoutCancel(ctx)
	slots := make([][]*core.Candidate, len(n.Sources))

	var eg errgroup.Group
	for i, src := range n.Sources {
		i, src := i, src
		eg.Go(func() error {
			start := time.Now()
			items, err := src.Recall(recallCtx, fctx)
			if n.Observer != nil {
				n.Observer(src.Name(), len(items), time.Since(start), err)
			}
			if err != nil {
				return fmt.Errorf("recall %s: %w", src.Name(), err)
			}

			// 记录召回来源 label，方便 explain / 观测
			for _, it := range items {
				it.PutLabel("recall_source", utils.Label{Value: src.Name(), Source: "recall"})
			}
			slots[i] = items
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, s := range slots {
		total += len(s)
	}
	all := make([]*core.Candidate, 0, total)
	for _, s := range slots {
		all = append(all, s...)
	}
	return all, nil
}
