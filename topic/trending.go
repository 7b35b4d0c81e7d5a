package topic

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/feedrank/core"
)

// DefaultTrendingKey 是热门话题有序集合的 key，元数据放在 {key}:meta 哈希表。
const DefaultTrendingKey = "topics:trending"

const (
	metaRefreshedAt = "refreshed_at"
	metaTopics      = "topics"
)

// StoreTrending 从 KeyValueStore 的有序集合读取热门话题快照，实现 core.TrendingTopics。
type StoreTrending struct {
	Store core.KeyValueStore
	Key   string
	TopN  int64 // 快照最多包含的话题数，<=0 表示全部
}

var _ core.TrendingTopics = (*StoreTrending)(nil)

func (t *StoreTrending) key() string {
	if t.Key == "" {
		return DefaultTrendingKey
	}
	return t.Key
}

// Snapshot 返回 topicID -> 热度。
func (t *StoreTrending) Snapshot(ctx context.Context) (map[string]float64, error) {
	stop := int64(-1)
	if t.TopN > 0 {
		stop = t.TopN - 1
	}
	members, err := t.Store.ZRangeWithScores(ctx, t.key(), 0, stop)
	if err != nil {
		return nil, fmt.Errorf("topic: trending snapshot: %w", err)
	}
	out := make(map[string]float64, len(members))
	for _, m := range members {
		out[m.Member] = m.Score
	}
	return out, nil
}

// Replace 用新的热度原子地整体替换快照，然后更新元数据。
func (t *StoreTrending) Replace(ctx context.Context, scores map[string]float64) error {
	members := make([]core.ScoredMember, 0, len(scores))
	for id, score := range scores {
		members = append(members, core.ScoredMember{Member: id, Score: score})
	}
	if err := t.Store.ZReplace(ctx, t.key(), members); err != nil {
		return fmt.Errorf("topic: replace trending: %w", err)
	}
	meta := map[string]string{
		metaRefreshedAt: time.Now().UTC().Format(time.RFC3339Nano),
		metaTopics:      strconv.Itoa(len(members)),
	}
	if err := t.Store.HSet(ctx, t.metaKey(), meta); err != nil {
		return fmt.Errorf("topic: trending meta: %w", err)
	}
	return nil
}

func (t *StoreTrending) metaKey() string {
	return t.key() + ":meta"
}

// Status 返回最近一次 Replace 写入的元数据，从未刷新过时返回 core.ErrStoreNotFound。
func (t *StoreTrending) Status(ctx context.Context) (*core.TrendingStatus, error) {
	meta, err := t.Store.HGetAll(ctx, t.metaKey())
	if err != nil {
		return nil, fmt.Errorf("topic: trending meta: %w", err)
	}
	if len(meta) == 0 {
		return nil, core.ErrStoreNotFound
	}
	status := &core.TrendingStatus{}
	if status.RefreshedAt, err = time.Parse(time.RFC3339Nano, meta[metaRefreshedAt]); err != nil {
		return nil, fmt.Errorf("topic: trending meta %s: %w", metaRefreshedAt, err)
	}
	if status.Topics, err = strconv.Atoi(meta[metaTopics]); err != nil {
		return nil, fmt.Errorf("topic: trending meta %s: %w", metaTopics, err)
	}
	return status, nil
}

// ActivitySource 计算近期各话题的活跃度。
//
// 实现：
//   - sqlstore.Store
type ActivitySource interface {
	TopicActivity(ctx context.Context, since time.Time) (map[string]float64, error)
}

// Refresher 周期性地把话题活跃度写入 StoreTrending，由定时任务驱动。
type Refresher struct {
	Source   ActivitySource
	Trending *StoreTrending
	Window   time.Duration
	Logger   zerolog.Logger

	// Cache 非 nil 时，写入新快照后使其失效
	Cache *CachedTrending
}

// Run 执行一次刷新，返回写入的话题数。
func (r *Refresher) Run(ctx context.Context) (int, error) {
	window := r.Window
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	scores, err := r.Source.TopicActivity(ctx, time.Now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("topic: activity: %w", err)
	}
	if err := r.Trending.Replace(ctx, scores); err != nil {
		return 0, err
	}
	if r.Cache != nil {
		r.Cache.Invalidate()
	}
	r.Logger.Info().Int("topics", len(scores)).Msg("trending topics refreshed")
	return len(scores), nil
}
