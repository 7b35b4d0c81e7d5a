package interest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/feedrank/core"
)

// DefaultActiveWindow 是批量预热时"近期活跃"的时间窗口。
const DefaultActiveWindow = 30 * 24 * time.Hour

// Warmer 批量重建近期活跃用户的画像，由定时任务驱动。
type Warmer struct {
	users  core.ActiveUserLister
	cache  core.InterestScoreCache
	window time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWarmer(users core.ActiveUserLister, cache core.InterestScoreCache, window time.Duration, logger zerolog.Logger) *Warmer {
	if window <= 0 {
		window = DefaultActiveWindow
	}
	return &Warmer{
		users:  users,
		cache:  cache,
		window: window,
		now:    time.Now,
		logger: logger.With().Str("component", "interest_warmer").Logger(),
	}
}

// Run 执行一次预热，返回重建的用户数。
func (w *Warmer) Run(ctx context.Context) (int, error) {
	start := w.now()
	ids, err := w.users.ActiveUsers(ctx, start.Add(-w.window))
	if err != nil {
		return 0, fmt.Errorf("interest: list active users: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := w.cache.Rebuild(ctx, ids); err != nil {
		return 0, err
	}
	w.logger.Info().
		Int("users", len(ids)).
		Dur("elapsed", time.Since(start)).
		Msg("interest cache warmed")
	return len(ids), nil
}
