// Package config 定义 feedrank 的配置结构。
//
// 加载顺序（后者覆盖前者）：Default() 默认值 -> YAML 文件 -> 环境变量 FEEDRANK_*。
// 环境变量以 "__" 分隔层级，例如 FEEDRANK_REDIS__ADDR -> redis.addr。
package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rushteam/feedrank/feed"
	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/interest"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/pkg/dsl"
	"github.com/rushteam/feedrank/recall"
	"github.com/rushteam/feedrank/store"
	"github.com/rushteam/feedrank/topic"
)

// 存储后端。
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config 是进程级配置。
type Config struct {
	Server   ServerConfig    `yaml:"server" koanf:"server"`
	Log      LogConfig       `yaml:"log" koanf:"log"`
	Feed     FeedConfig      `yaml:"feed" koanf:"feed"`
	Topics   topic.Options   `yaml:"topics" koanf:"topics"`
	Interest InterestConfig  `yaml:"interest" koanf:"interest"`
	Reposts  RepostConfig    `yaml:"reposts" koanf:"reposts"`
	Store    StoreConfig     `yaml:"store" koanf:"store"`
	Redis    RedisConfig     `yaml:"redis" koanf:"redis"`
	SQLite   SQLiteConfig    `yaml:"sqlite" koanf:"sqlite"`
	Schedule ScheduleConfig  `yaml:"schedule" koanf:"schedule"`
	Pipeline pipeline.Config `yaml:"pipeline" koanf:"pipeline"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" koanf:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" koanf:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" koanf:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
	RateLimit       int           `yaml:"rate_limit" koanf:"rate_limit"` // 每 IP 每分钟，0 不限流
}

type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`   // trace / debug / info / warn / error
	Format string `yaml:"format" koanf:"format"` // json / console
}

// FeedConfig 是排序请求相关的参数。
type FeedConfig struct {
	DefaultLimit int `yaml:"default_limit" koanf:"default_limit"`
	MaxLimit     int `yaml:"max_limit" koanf:"max_limit"`

	// ColdStartMultiplier：冷启动时按 limit × multiplier 取全局重要合约
	ColdStartMultiplier int `yaml:"cold_start_multiplier" koanf:"cold_start_multiplier"`

	// AlwaysBlockedUserIDs：启动时加载，并入每个请求的作者屏蔽列表
	AlwaysBlockedUserIDs []string `yaml:"always_blocked_user_ids" koanf:"always_blocked_user_ids"`

	ExcludedOutcomeTypes []string `yaml:"excluded_outcome_types" koanf:"excluded_outcome_types"`

	// QualityExprs：CEL 质量门槛，例如 "contract.view_count >= 1"
	QualityExprs []string `yaml:"quality_exprs" koanf:"quality_exprs"`
}

type InterestConfig struct {
	KeyPrefix    string        `yaml:"key_prefix" koanf:"key_prefix"`
	TTL          time.Duration `yaml:"ttl" koanf:"ttl"`
	BatchSize    int           `yaml:"batch_size" koanf:"batch_size"`
	Concurrency  int           `yaml:"concurrency" koanf:"concurrency"`
	ActiveWindow time.Duration `yaml:"active_window" koanf:"active_window"`
}

// CacheOptions 转换为 interest.CacheOptions。
func (c InterestConfig) CacheOptions() interest.CacheOptions {
	return interest.CacheOptions{
		KeyPrefix:   c.KeyPrefix,
		TTL:         c.TTL,
		BatchSize:   c.BatchSize,
		Concurrency: c.Concurrency,
	}
}

type RepostConfig struct {
	Window               time.Duration `yaml:"window" koanf:"window"`
	MinTopicScore        float64       `yaml:"min_topic_score" koanf:"min_topic_score"`
	StrictCommentUserIDs []string      `yaml:"strict_comment_user_ids" koanf:"strict_comment_user_ids"`
	ScorePrior           float64       `yaml:"score_prior" koanf:"score_prior"`
}

// Options 转换为 store.RepostOptions。
func (c RepostConfig) Options() store.RepostOptions {
	return store.RepostOptions{
		Window:               c.Window,
		MinTopicScore:        c.MinTopicScore,
		StrictCommentUserIDs: c.StrictCommentUserIDs,
		ScorePrior:           c.ScorePrior,
	}
}

// StoreConfig 选择存储后端。
type StoreConfig struct {
	// KV 保存兴趣画像与热门话题：memory / redis
	KV string `yaml:"kv" koanf:"kv"`

	// Content 保存合约、转发等：sqlite / memory
	Content string `yaml:"content" koanf:"content"`

	// Breaker 保护内容查询，failure_threshold 为 0 时不启用
	Breaker store.BreakerOptions `yaml:"breaker" koanf:"breaker"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr" koanf:"addr"`
	Password     string        `yaml:"password" koanf:"password"`
	DB           int           `yaml:"db" koanf:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout" koanf:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" koanf:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" koanf:"write_timeout"`
}

// Options 转换为 store.RedisOptions。
func (c RedisConfig) Options() store.RedisOptions {
	return store.RedisOptions{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

type SQLiteConfig struct {
	DSN string `yaml:"dsn" koanf:"dsn"`
}

// ScheduleConfig 是后台定时任务（cron 表达式，5 段）。为空表示不启用。
type ScheduleConfig struct {
	InterestWarm     string        `yaml:"interest_warm" koanf:"interest_warm"`
	TrendingRefresh  string        `yaml:"trending_refresh" koanf:"trending_refresh"`
	TrendingWindow   time.Duration `yaml:"trending_window" koanf:"trending_window"`
	TrendingTopN     int64         `yaml:"trending_top_n" koanf:"trending_top_n"`
	TrendingCacheTTL time.Duration `yaml:"trending_cache_ttl" koanf:"trending_cache_ttl"` // 进程内快照缓存
}

// Default 返回默认配置。
func Default() *Config {
	repost := store.DefaultRepostOptions()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Feed: FeedConfig{
			DefaultLimit:         5,
			MaxLimit:             50,
			ColdStartMultiplier:  recall.DefaultColdStartMultiplier,
			ExcludedOutcomeTypes: append([]string(nil), filter.DefaultExcludedOutcomeTypes...),
		},
		Topics: topic.DefaultOptions(),
		Interest: InterestConfig{
			KeyPrefix:    interest.DefaultKeyPrefix,
			TTL:          interest.DefaultTTL,
			BatchSize:    interest.DefaultBatchSize,
			Concurrency:  interest.DefaultConcurrency,
			ActiveWindow: interest.DefaultActiveWindow,
		},
		Reposts: RepostConfig{
			Window:        repost.Window,
			MinTopicScore: repost.MinTopicScore,
			ScorePrior:    repost.ScorePrior,
		},
		Store: StoreConfig{
			KV:      BackendMemory,
			Content: BackendSQLite,
			Breaker: store.BreakerOptions{FailureThreshold: 5, Timeout: 30 * time.Second, MaxRequests: 1},
		},
		Redis: RedisConfig{
			Addr:         "127.0.0.1:6379",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		SQLite: SQLiteConfig{DSN: "feedrank.db"},
		Schedule: ScheduleConfig{
			InterestWarm:     "0 */6 * * *",
			TrendingRefresh:  "*/10 * * * *",
			TrendingWindow:   7 * 24 * time.Hour,
			TrendingTopN:     500,
			TrendingCacheTTL: topic.DefaultSnapshotTTL,
		},
		Pipeline: feed.DefaultPipeline(),
	}
}

// Validate 校验配置。
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be non-negative, got %d", c.Server.RateLimit)
	}
	if c.Feed.MaxLimit <= 0 {
		return fmt.Errorf("feed.max_limit must be positive, got %d", c.Feed.MaxLimit)
	}
	if c.Feed.DefaultLimit <= 0 || c.Feed.DefaultLimit > c.Feed.MaxLimit {
		return fmt.Errorf("feed.default_limit must be in (0, %d], got %d", c.Feed.MaxLimit, c.Feed.DefaultLimit)
	}
	if c.Feed.ColdStartMultiplier <= 0 {
		return fmt.Errorf("feed.cold_start_multiplier must be positive, got %d", c.Feed.ColdStartMultiplier)
	}
	if err := dsl.Validate(c.Feed.QualityExprs...); err != nil {
		return fmt.Errorf("feed.quality_exprs: %w", err)
	}
	if err := c.Topics.Validate(); err != nil {
		return err
	}
	if c.Reposts.MinTopicScore < 0 || c.Reposts.ScorePrior < 0 {
		return fmt.Errorf("reposts: scores must be non-negative")
	}

	switch c.Store.KV {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when store.kv is redis")
		}
	default:
		return fmt.Errorf("store.kv: unknown backend %q", c.Store.KV)
	}
	switch c.Store.Content {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLite.DSN == "" {
			return fmt.Errorf("sqlite.dsn is required when store.content is sqlite")
		}
	default:
		return fmt.Errorf("store.content: unknown backend %q", c.Store.Content)
	}

	for name, spec := range map[string]string{
		"schedule.interest_warm":    c.Schedule.InterestWarm,
		"schedule.trending_refresh": c.Schedule.TrendingRefresh,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if len(c.Pipeline.Nodes) == 0 {
		return fmt.Errorf("pipeline.nodes is empty")
	}
	return nil
}

// EngineOptions 转换为 feed.Options。
func (c *Config) EngineOptions() feed.Options {
	return feed.Options{
		Topics: c.Topics,
		Filter: filter.Builder{
			AlwaysBlockedUserIDs: c.Feed.AlwaysBlockedUserIDs,
			ExcludedOutcomeTypes: c.Feed.ExcludedOutcomeTypes,
			QualityExprs:         c.Feed.QualityExprs,
		},
		ColdStartMultiplier: c.Feed.ColdStartMultiplier,
		Pipeline:            c.Pipeline,
	}
}
