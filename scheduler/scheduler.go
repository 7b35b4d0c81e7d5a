// Package scheduler 用 cron 驱动后台任务：兴趣画像预热、热门话题刷新。
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job 是一次任务执行，返回处理的条目数。
type Job func(ctx context.Context) (int, error)

// Scheduler 管理后台任务。同一任务的上一次执行未结束时跳过本次触发。
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New 创建调度器。timeout 限制单次执行时长，<=0 表示不限。
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(timeout time.Duration, logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]cron.EntryID),
	}
}

// Add 以 5 段 cron 表达式注册任务。同名任务会被替换。
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.Run(name, job)
	}))
	id, err := s.cron.AddJob(spec, wrapped)
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.entries[name] = id
	s.logger.Info().Str("job", name).Str("cron", spec).Msg("job scheduled")
	return nil
}

// Run 立即同步执行一次任务，启动时预热也走这里。
func (s *Scheduler) Run(name string, job Job) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	n, err := job(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(start)).Msg("job failed")
		return
	}
	s.logger.Info().Str("job", name).Int("items", n).Dur("elapsed", time.Since(start)).Msg("job done")
}

// Jobs 返回已注册的任务名。
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	return out
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop 取消正在执行的任务并等待它们退出。
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
