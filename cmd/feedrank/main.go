// Command feedrank 启动 Feed 排序服务：HTTP 接口 + 后台定时任务。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/rushteam/feedrank/config"
	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/feed"
	"github.com/rushteam/feedrank/httpapi"
	"github.com/rushteam/feedrank/interest"
	"github.com/rushteam/feedrank/scheduler"
	"github.com/rushteam/feedrank/store"
	"github.com/rushteam/feedrank/store/sqlstore"
	"github.com/rushteam/feedrank/topic"
)

// contentBackend 是内容存储需要同时满足的接口。
type contentBackend interface {
	core.ContentStore
	core.RepostProvider
	core.ProfileBuilder
	core.ActiveUserLister
	topic.ActivitySource
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (default: $FEEDRANK_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("feedrank exited")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "feedrank").Logger()
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	kv, err := openKV(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()

	content, closeContent, err := openContent(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeContent()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cache := interest.NewCache(kv, content, cfg.Interest.CacheOptions(), logger)
	trending := &topic.StoreTrending{Store: kv, TopN: cfg.Schedule.TrendingTopN}
	snapshots := topic.NewCachedTrending(trending, cfg.Schedule.TrendingCacheTTL)

	var (
		queries core.ContentStore   = content
		reposts core.RepostProvider = content
	)
	if cfg.Store.Breaker.FailureThreshold > 0 {
		guarded := store.NewGuardedContent(content, content, store.NewBreaker(content.Name(), cfg.Store.Breaker, logger))
		queries, reposts = guarded, guarded
	}

	engine, err := feed.New(feed.Deps{
		Interest:   cache,
		Content:    queries,
		Reposts:    reposts,
		Trending:   snapshots,
		Registerer: registry,
		Logger:     logger,
	}, cfg.EngineOptions())
	if err != nil {
		return err
	}

	jobs := scheduler.New(10*time.Minute, logger)
	warmer := interest.NewWarmer(content, cache, cfg.Interest.ActiveWindow, logger)
	refresher := &topic.Refresher{
		Source:   content,
		Trending: trending,
		Window:   cfg.Schedule.TrendingWindow,
		Logger:   logger,
		Cache:    snapshots,
	}
	if spec := cfg.Schedule.TrendingRefresh; spec != "" {
		if err := jobs.Add("trending_refresh", spec, refresher.Run); err != nil {
			return err
		}
		jobs.Run("trending_refresh", refresher.Run)
	}
	if spec := cfg.Schedule.InterestWarm; spec != "" {
		if err := jobs.Add("interest_warm", spec, warmer.Run); err != nil {
			return err
		}
	}
	jobs.Start()
	defer jobs.Stop()

	handler := httpapi.NewHandler(engine, httpapi.Options{
		DefaultLimit: cfg.Feed.DefaultLimit,
		MaxLimit:     cfg.Feed.MaxLimit,
		Timeout:      cfg.Server.WriteTimeout,
		RateLimit:    cfg.Server.RateLimit,
		Trending:     trending,
		Gatherer:     registry,
	}, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).
			Str("kv", kv.Name()).Str("content", content.Name()).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openKV(ctx context.Context, cfg *config.Config) (core.KeyValueStore, error) {
	if cfg.Store.KV == config.BackendRedis {
		s, err := store.NewRedisStore(ctx, cfg.Redis.Options())
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return store.NewMemoryStore(), nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func openContent(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (contentBackend, func(), error) {
	if cfg.Store.Content == config.BackendMemory {
		return store.NewMemoryContentStore(cfg.Reposts.Options()), func() {}, nil
	}
	s, err := sqlstore.Open(ctx, cfg.SQLite.DSN, cfg.Reposts.Options(), logger)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
