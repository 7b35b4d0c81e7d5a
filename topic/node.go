package topic

import (
	"context"
	"strconv"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/pkg/utils"
)

// SelectNode 是 prepare 阶段的 Node：读取 FeedContext.Profile，
// 老用户先取热门快照，再执行 Select，结果写入 FeedContext.InterestTopics 与 Topics。
// 截断后没有话题时，InterestTopics 仍会写入，再返回 ErrNoTopics。
type SelectNode struct {
	Trending core.TrendingTopics
	Options  Options
}

func (n *SelectNode) Name() string        { return "topic.select" }
func (n *SelectNode) Kind() pipeline.Kind { return pipeline.KindPrepare }

func (n *SelectNode) Process(
	ctx context.Context,
	fctx *core.FeedContext,
	cands []*core.Candidate,
) ([]*core.Candidate, error) {
	var snapshot map[string]float64
	established := n.Options.Established(fctx.Profile)
	if established && n.Trending != nil {
		s, err := n.Trending.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		snapshot = s
	}

	sel, err := Select(fctx.Profile, snapshot, n.Options)
	if sel != nil {
		fctx.InterestTopics = sel.All
		fctx.Topics = sel.Topics
	}
	if err != nil {
		return nil, err
	}

	fctx.PutLabel("established", utils.Label{Value: strconv.FormatBool(established), Source: "topic"})
	fctx.PutLabel("topics_injected", utils.Label{Value: strconv.Itoa(sel.Injected), Source: "topic"})
	fctx.PutLabel("topics_cutoff", utils.Label{Value: strconv.Itoa(sel.Cutoff), Source: "topic"})
	return cands, nil
}
