package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/feedrank/core"
)

// BreakerOptions 是熔断器参数。FailureThreshold 为 0 表示不启用熔断。
type BreakerOptions struct {
	FailureThreshold uint32        `yaml:"failure_threshold" koanf:"failure_threshold"` // 连续失败多少次后打开
	Timeout          time.Duration `yaml:"timeout" koanf:"timeout"`                     // 打开状态持续多久后进入半开
	MaxRequests      uint32        `yaml:"max_requests" koanf:"max_requests"`           // 半开状态放行的请求数
}

// Breaker 包装一个外部协作方的调用。打开状态下直接返回 UNAVAILABLE，不再访问后端。
// 调用方取消（context.Canceled）不计为失败。
type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBreaker(name string, opts BreakerOptions, logger zerolog.Logger) *Breaker {
	threshold := opts.FailureThreshold
	logger = logger.With().Str("component", "breaker").Str("breaker", name).Logger()
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: opts.MaxRequests,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// State 返回当前状态（closed / half-open / open）。
func (b *Breaker) State() string { return b.cb.State().String() }

func guard[T any](b *Breaker, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, core.NewDomainError(core.ModuleStore, core.ErrorCodeUnavailable,
				fmt.Sprintf("%s: %v", b.cb.Name(), err))
		}
		return zero, err
	}
	return v.(T), nil
}

// GuardedContent 给 ContentStore 与 RepostProvider 加上熔断。
type GuardedContent struct {
	content core.ContentStore
	reposts core.RepostProvider
	breaker *Breaker
}

var (
	_ core.ContentStore   = (*GuardedContent)(nil)
	_ core.RepostProvider = (*GuardedContent)(nil)
)

// NewGuardedContent 用同一个熔断器保护内容查询与转发查询（二者通常落在同一个库上）。
func NewGuardedContent(content core.ContentStore, reposts core.RepostProvider, breaker *Breaker) *GuardedContent {
	return &GuardedContent{content: content, reposts: reposts, breaker: breaker}
}

func (g *GuardedContent) Name() string { return g.content.Name() }

func (g *GuardedContent) QueryTopicWeighted(ctx context.Context, q *core.CandidateQuery) ([]core.ScoredContract, error) {
	return guard(g.breaker, func() ([]core.ScoredContract, error) { return g.content.QueryTopicWeighted(ctx, q) })
}

func (g *GuardedContent) QueryFollowed(ctx context.Context, q *core.CandidateQuery) ([]core.ScoredContract, error) {
	return guard(g.breaker, func() ([]core.ScoredContract, error) { return g.content.QueryFollowed(ctx, q) })
}

func (g *GuardedContent) QueryGlobalTrending(ctx context.Context, q *core.TrendingQuery) ([]*core.Contract, error) {
	return guard(g.breaker, func() ([]*core.Contract, error) { return g.content.QueryGlobalTrending(ctx, q) })
}

func (g *GuardedContent) FollowedReposts(ctx context.Context, q *core.RepostQuery) ([]*core.Candidate, error) {
	return guard(g.breaker, func() ([]*core.Candidate, error) { return g.reposts.FollowedReposts(ctx, q) })
}

func (g *GuardedContent) TopicReposts(ctx context.Context, q *core.RepostQuery) ([]*core.Candidate, error) {
	return guard(g.breaker, func() ([]*core.Candidate, error) { return g.reposts.TopicReposts(ctx, q) })
}
