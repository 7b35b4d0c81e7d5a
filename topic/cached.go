package topic

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rushteam/feedrank/core"
)

// DefaultSnapshotTTL 是本地缓存热门快照的时长。快照由定时任务刷新，分钟级即可。
const DefaultSnapshotTTL = 30 * time.Second

// CachedTrending 在进程内缓存热门快照，避免每个老用户请求都读一次存储。
// 过期后第一个请求负责刷新，并发请求共享同一次读取。
type CachedTrending struct {
	source core.TrendingTopics
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	snapshot map[string]float64
	expireAt time.Time

	flight singleflight.Group
}

var _ core.TrendingTopics = (*CachedTrending)(nil)

// NewCachedTrending 包装 source。ttl <= 0 使用 DefaultSnapshotTTL。
func NewCachedTrending(source core.TrendingTopics, ttl time.Duration) *CachedTrending {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &CachedTrending{source: source, ttl: ttl, now: time.Now}
}

// Snapshot 返回缓存的快照。调用方不得修改返回的 map。
func (c *CachedTrending) Snapshot(ctx context.Context) (map[string]float64, error) {
	c.mu.RLock()
	if c.snapshot != nil && c.now().Before(c.expireAt) {
		s := c.snapshot
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.flight.Do("snapshot", func() (any, error) {
		s, err := c.source.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if s == nil {
			s = map[string]float64{}
		}
		c.mu.Lock()
		c.snapshot = s
		c.expireAt = c.now().Add(c.ttl)
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]float64), nil
}

// Invalidate 丢弃缓存，下一次 Snapshot 重新读取。
func (c *CachedTrending) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}
