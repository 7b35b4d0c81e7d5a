// Package feed 编排一次 Feed 排序请求。
//
// 三个分支：
//   - 匿名用户：全局热门（质量门槛 + importance 降序），reason 为 trending
//   - 已登录但没有兴趣数据：冷启动，importance 降序取 limit × 4，reason 为 importance
//   - 个性化：话题选择 -> 谓词构建 -> 四路并发召回 -> 合并去重
//
// 个性化分支截断后没有话题（NO_TOPICS）时，话题加权与关注作者召回没有可用话题，
// 只跑两路转发召回（分支 no_topics）；没有配置转发时把 NO_TOPICS 错误返回给调用方。
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/interest"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/recall"
	"github.com/rushteam/feedrank/topic"
)

// Deps 是引擎的协作方。
type Deps struct {
	Interest core.InterestScoreCache
	Content  core.ContentStore
	Reposts  core.RepostProvider
	Trending core.TrendingTopics

	// Registerer 为 nil 时指标注册到独立 Registry
	Registerer prometheus.Registerer
	Logger     zerolog.Logger
}

// Options 是引擎参数，零值字段使用默认值。
type Options struct {
	Topics              topic.Options
	Filter              filter.Builder
	ColdStartMultiplier int
	Pipeline            pipeline.Config
}

// Engine 是 Feed 排序引擎，可被多个请求并发使用。
type Engine struct {
	opts     Options
	resolver *interest.Resolver
	content  core.ContentStore
	reposts  core.RepostProvider
	trending core.TrendingTopics
	builder  *filter.Builder

	pipeline   *pipeline.Pipeline
	noTopics   *pipeline.Pipeline // 仅转发召回，reposts 为 nil 时为 nil
	importance *recall.Importance
	anonymous  *recall.Trending

	metrics *Metrics
	logger  zerolog.Logger
}

// New 校验依赖并按 Options.Pipeline 构建个性化阶段。
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Interest == nil || deps.Content == nil {
		return nil, fmt.Errorf("feed: interest cache and content store are required")
	}
	if opts.Topics == (topic.Options{}) {
		opts.Topics = topic.DefaultOptions()
	}
	if err := opts.Topics.Validate(); err != nil {
		return nil, err
	}
	if opts.ColdStartMultiplier <= 0 {
		opts.ColdStartMultiplier = recall.DefaultColdStartMultiplier
	}
	if len(opts.Pipeline.Nodes) == 0 {
		opts.Pipeline = DefaultPipeline()
	}

	logger := deps.Logger.With().Str("component", "feed").Logger()
	builder := opts.Filter
	e := &Engine{
		opts:     opts,
		resolver: interest.NewResolver(deps.Interest, deps.Logger),
		content:  deps.Content,
		reposts:  deps.Reposts,
		trending: deps.Trending,
		builder:  &builder,
		metrics:  NewMetrics(deps.Registerer),
		logger:   logger,
	}
	e.importance = &recall.Importance{Store: deps.Content, Multiplier: opts.ColdStartMultiplier}
	e.anonymous = &recall.Trending{Store: deps.Content, Predicates: e.builder.Anonymous()}

	p, err := opts.Pipeline.BuildPipeline(e.factory())
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	p.Hooks = append(p.Hooks, e.metrics.ObserveNode)
	e.pipeline = p

	if deps.Reposts != nil {
		cfg := repostsOnlyPipeline()
		np, err := cfg.BuildPipeline(e.factory())
		if err != nil {
			return nil, fmt.Errorf("feed: %w", err)
		}
		np.Hooks = append(np.Hooks, e.metrics.ObserveNode)
		e.noTopics = np
	}
	return e, nil
}

// Metrics 返回引擎的指标。
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Rank 处理一次排序请求。失败时不返回部分结果。
func (e *Engine) Rank(ctx context.Context, req *core.FeedRequest) (*core.FeedResult, error) {
	if err := validateRequest(req); err != nil {
		e.metrics.Errors.WithLabelValues("validate").Inc()
		return nil, err
	}
	r := *req
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	logger := e.logger.With().Str("request_id", r.RequestID).Str("user_id", r.UserID).Logger()

	start := time.Now()
	res, branch, err := e.rank(ctx, &r, logger)
	if err != nil {
		logger.Warn().Err(err).Str("branch", branch).Msg("rank failed")
		return nil, err
	}

	elapsed := time.Since(start)
	e.metrics.Requests.WithLabelValues(branch).Inc()
	e.metrics.Latency.WithLabelValues(branch).Observe(elapsed.Seconds())
	logger.Debug().
		Str("branch", branch).
		Int("contracts", len(res.Contracts)).
		Int("reposts", len(res.Reposts)).
		Dur("elapsed", elapsed).
		Msg("ranked")
	return res, nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) rank(ctx context.Context, req *core.FeedRequest, logger zerolog.Logger) (*core.FeedResult, string, error) {
	if req.Anonymous() {
		res, err := e.anonymous.Rank(ctx, req)
		if err != nil {
			e.metrics.Errors.WithLabelValues(e.anonymous.Name()).Inc()
			return nil, BranchAnonymous, fmt.Errorf("anonymous feed: %w", err)
		}
		return res, BranchAnonymous, nil
	}

	resolution, err := e.resolver.Resolve(ctx, req.UserID)
	if err != nil {
		e.metrics.Errors.WithLabelValues("resolve").Inc()
		return nil, BranchPersonalized, fmt.Errorf("resolve interests: %w", err)
	}
	if resolution.ColdStart {
		res, err := e.coldStart(ctx, req)
		return res, BranchColdStart, err
	}

	fctx := &core.FeedContext{Request: req, Profile: resolution.Profile}
	if _, err := e.pipeline.Run(ctx, fctx, nil); err != nil {
		if errors.Is(err, topic.ErrNoTopics) {
			return e.rankNoTopics(ctx, fctx, logger)
		}
		return nil, BranchPersonalized, err
	}
	if fctx.Result == nil {
		return nil, BranchPersonalized, core.NewDomainError(core.ModuleFeed, core.ErrorCodeInternalError,
			"feed: pipeline produced no result")
	}

	logger.Debug().
		Int("profile_topics", resolution.Profile.Len()).
		Int("topics", fctx.Topics.Len()).
		Bool("rebuilt", resolution.Rebuilt).
		Msg("personalized")
	return fctx.Result, BranchPersonalized, nil
}

// rankNoTopics 在截断后没有话题时只跑转发召回。fctx.InterestTopics 已由 topic.select 写入。
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) rankNoTopics(ctx context.Context, fctx *core.FeedContext, logger zerolog.Logger) (*core.FeedResult, string, error) {
	if e.noTopics == nil {
		return nil, BranchNoTopics, fmt.Errorf("select topics: %w", topic.ErrNoTopics)
	}
	logger.Warn().
		Int("profile_topics", fctx.Profile.Len()).
		Int("interest_topics", fctx.InterestTopics.Len()).
		Msg("no topics after cutoff, serving reposts only")
	if _, err := e.noTopics.Run(ctx, fctx, nil); err != nil {
		return nil, BranchNoTopics, err
	}
	if fctx.Result == nil {
		return nil, BranchNoTopics, core.NewDomainError(core.ModuleFeed, core.ErrorCodeInternalError,
			"feed: pipeline produced no result")
	}
	return fctx.Result, BranchNoTopics, nil
}

func (e *Engine) coldStart(ctx context.Context, req *core.FeedRequest) (*core.FeedResult, error) {
	res, err := e.importance.Rank(ctx, req)
	if err != nil {
		e.metrics.Errors.WithLabelValues(e.importance.Name()).Inc()
		return nil, fmt.Errorf("cold start feed: %w", err)
	}
	return res, nil
}

func validateRequest(req *core.FeedRequest) error {
	if req == nil {
		return core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput, "feed: nil request")
	}
	if req.Limit <= 0 {
		return core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput,
			fmt.Sprintf("feed: limit must be positive, got %d", req.Limit))
	}
	if req.Offset < 0 {
		return core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput,
			fmt.Sprintf("feed: offset must be non-negative, got %d", req.Offset))
	}
	return nil
}
