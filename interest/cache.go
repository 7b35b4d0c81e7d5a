package interest

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/feedrank/core"
)

// 默认参数，与离线批量构建保持一致。
const (
	DefaultKeyPrefix   = "interest"
	DefaultTTL         = 24 * time.Hour
	DefaultBatchSize   = 500
	DefaultConcurrency = 8
)

// CacheOptions 是 Cache 的可选参数，零值字段使用默认值。
type CacheOptions struct {
	KeyPrefix   string
	TTL         time.Duration
	BatchSize   int // 每批重建的用户数
	Concurrency int // 批内并发重建数
}

func (o CacheOptions) withDefaults() CacheOptions {
	if o.KeyPrefix == "" {
		o.KeyPrefix = DefaultKeyPrefix
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Cache 是基于 core.Store 的话题兴趣画像缓存，实现 core.InterestScoreCache。
//
// 每个用户的画像序列化为一个 JSON 值整体写入（{prefix}:{userID}），
// 读方要么看到完整的旧画像，要么看到完整的新画像。
// 同一用户的并发重建通过 singleflight 合并为一次。
type Cache struct {
	store   core.Store
	builder core.ProfileBuilder
	opts    CacheOptions
	logger  zerolog.Logger

	flight singleflight.Group
}

var _ core.InterestScoreCache = (*Cache)(nil)

//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCache(store core.Store, builder core.ProfileBuilder, opts CacheOptions, logger zerolog.Logger) *Cache {
	return &Cache{
		store:   store,
		builder: builder,
		opts:    opts.withDefaults(),
		logger:  logger.With().Str("component", "interest_cache").Logger(),
	}
}

func (c *Cache) key(userID string) string {
	return c.opts.KeyPrefix + ":" + userID
}

// GetWeights 读取画像；不存在返回空画像。
func (c *Cache) GetWeights(ctx context.Context, userID string) (core.TopicProfile, error) {
	data, err := c.store.Get(ctx, c.key(userID))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("interest: get %s: %w", userID, err)
	}
	var profile core.TopicProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, core.NewDomainError(core.ModuleInterest, core.ErrorCodeInternalError,
			fmt.Sprintf("interest: decode profile %s: %v", userID, err))
	}
	return profile, nil
}

// Rebuild 重建一批用户的画像。用户按 BatchSize 分批，批内并发数受 Concurrency 限制。
// 任一用户失败时，当前批次跑完后返回第一个错误，后续批次不再执行。
func (c *Cache) Rebuild(ctx context.Context, userIDs []string) error {
	ids := dedup(userIDs)
	for start := 0; start < len(ids); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(ids))
		chunk := ids[start:end]

		g := new(errgroup.Group)
		g.SetLimit(c.opts.Concurrency)
		for _, uid := range chunk {
			uid := uid
			g.Go(func() error {
				return c.rebuildOne(ctx, uid)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		c.logger.Debug().
			Int("batch_start", start).
			Int("batch_size", len(chunk)).
			Int("total", len(ids)).
			Msg("rebuilt interest batch")
	}
	return nil
}

func (c *Cache) rebuildOne(ctx context.Context, userID string) error {
	_, err, shared := c.flight.Do(userID, func() (any, error) {
		profile, err := c.builder.Build(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("interest: build %s: %w", userID, err)
		}
		if profile == nil {
			profile = core.TopicProfile{}
		}
		data, err := json.Marshal(profile)
		if err != nil {
			return nil, fmt.Errorf("interest: encode %s: %w", userID, err)
		}
		if err := c.store.Set(ctx, c.key(userID), data, int(c.opts.TTL/time.Second)); err != nil {
			return nil, fmt.Errorf("interest: set %s: %w", userID, err)
		}
		return nil, nil
	})
	if shared {
		c.logger.Debug().Str("user_id", userID).Msg("joined in-flight rebuild")
	}
	return err
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
