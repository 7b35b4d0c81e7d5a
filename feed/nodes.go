package feed

import (
	"fmt"

	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/pkg/conv"
	"github.com/rushteam/feedrank/recall"
	"github.com/rushteam/feedrank/rerank"
	"github.com/rushteam/feedrank/topic"
)

// 可配置的召回源名称（recall.fanout 的 sources）。
const (
	SourceTopicWeighted   = "topic_weighted"
	SourceFollowed        = "followed"
	SourceFollowedReposts = "followed_reposts"
	SourceTopicReposts    = "topic_reposts"
)

// DefaultSources 是默认召回源，顺序即候选拼接顺序。
var DefaultSources = []string{SourceTopicWeighted, SourceFollowed, SourceFollowedReposts, SourceTopicReposts}

// DefaultPipeline 返回默认阶段：话题选择 -> 谓词构建 -> 并发召回 -> 合并去重。
func DefaultPipeline() pipeline.Config {
	sources := make([]any, len(DefaultSources))
	for i, s := range DefaultSources {
		sources[i] = s
	}
	return pipeline.Config{Nodes: []pipeline.NodeConfig{
		{Type: "topic.select"},
		{Type: "filter.build"},
		{Type: "recall.fanout", Config: map[string]any{"sources": sources}},
		{Type: "rerank.merge"},
	}}
}

// repostsOnlyPipeline 是截断后没有话题时使用的阶段：只跑两路转发召回。
func repostsOnlyPipeline() pipeline.Config {
	return pipeline.Config{Nodes: []pipeline.NodeConfig{
		{Type: "filter.build"},
		{Type: "recall.fanout", Config: map[string]any{"sources": []any{SourceFollowedReposts, SourceTopicReposts}}},
		{Type: "rerank.merge"},
	}}
}

// factory 注册引擎支持的 Node 类型，构建器闭包持有引擎的依赖。
func (e *Engine) factory() *pipeline.NodeFactory {
	f := pipeline.NewNodeFactory()
	f.Register("topic.select", func(map[string]any) (pipeline.Node, error) {
		return &topic.SelectNode{Trending: e.trending, Options: e.opts.Topics}, nil
	})
	f.Register("filter.build", func(map[string]any) (pipeline.Node, error) {
		return &filter.BuildNode{Builder: e.builder}, nil
	})
	f.Register("recall.fanout", e.buildFanout)
	f.Register("rerank.merge", func(map[string]any) (pipeline.Node, error) {
		return &rerank.MergeNode{}, nil
	})
	return f
}

func (e *Engine) buildFanout(cfg map[string]any) (pipeline.Node, error) {
	names := conv.ConfigGetStrings(cfg, "sources")
	if len(names) == 0 {
		names = DefaultSources
	}
	sources := make([]recall.Source, 0, len(names))
	for _, name := range names {
		src, err := e.source(name)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return &recall.Fanout{Sources: sources, Observer: e.metrics.ObserveRecall}, nil
}

func (e *Engine) source(name string) (recall.Source, error) {
	switch name {
	case SourceTopicWeighted:
		return &recall.TopicWeighted{Store: e.content, Logger: e.logger}, nil
	case SourceFollowed:
		return &recall.Followed{Store: e.content, Logger: e.logger}, nil
	case SourceFollowedReposts:
		if e.reposts == nil {
			return nil, fmt.Errorf("source %s: no repost provider", name)
		}
		return &recall.FollowedReposts{Provider: e.reposts, Logger: e.logger}, nil
	case SourceTopicReposts:
		if e.reposts == nil {
			return nil, fmt.Errorf("source %s: no repost provider", name)
		}
		return &recall.TopicReposts{Provider: e.reposts, Logger: e.logger}, nil
	default:
		return nil, fmt.Errorf("unknown recall source: %s", name)
	}
}
