package core

import (
	"context"
	"time"
)

// InterestScoreCache 是话题兴趣画像缓存的领域接口。
//
// 设计原则：
//   - 显式注入，替代进程级全局 map
//   - 引擎只读：GetWeights 返回的画像在请求内不可修改
//   - 刷新并发控制（按用户 single-flight）由缓存自身负责
//
// 实现：
//   - interest.Cache（基于 core.Store，内存或 Redis）
type InterestScoreCache interface {
	// GetWeights 返回用户画像；不存在时返回空画像而不是错误
	GetWeights(ctx context.Context, userID string) (TopicProfile, error)

	// Rebuild 重建指定用户的画像（可内联 await）
	Rebuild(ctx context.Context, userIDs []string) error
}

// ProfileBuilder 计算单个用户的话题画像（外部统计过程，只读消费其产出）。
//
// 实现：
//   - sqlstore.InterestBuilder
type ProfileBuilder interface {
	Build(ctx context.Context, userID string) (TopicProfile, error)
}

// ActiveUserLister 列出近期活跃用户，用于批量预热画像。
type ActiveUserLister interface {
	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)
}

// TrendingTopics 提供全局热门话题快照（topic -> score）。
//
// 实现：
//   - topic.StoreTrending（基于 KeyValueStore 有序集合）
type TrendingTopics interface {
	Snapshot(ctx context.Context) (map[string]float64, error)
}

// TrendingStatus 是最近一次写入的热门话题快照的元数据。
type TrendingStatus struct {
	RefreshedAt time.Time `json:"refreshedAt"`
	Topics      int       `json:"topics"`
}

// CandidateQuery 是话题加权召回与关注作者召回共用的查询参数。
type CandidateQuery struct {
	UserID string

	// Topics 是截断后的话题及权重（有序）
	Topics TopicProfile

	// Predicates 是排除 / 质量门槛谓词，按顺序组合
	Predicates []Predicate

	Limit  int
	Offset int
}

// TrendingQuery 是全局热门（按 importance 降序）查询参数。
type TrendingQuery struct {
	Predicates []Predicate
	Limit      int
	Offset     int
}

// ContentStore 是内容存储的领域接口。
//
// 设计原则：
//   - 核心只指定谓词与排序语义，不拼接任何查询文本
//   - 超时 / 重试策略属于实现方
//
// 排序语义：
//   - QueryTopicWeighted：按合约分组，avgTopicScore = 命中话题权重均值，
//     按 avg(topicScore × conversion × freshness) 降序
//   - QueryFollowed：附加 creator_followed_by 谓词，按 conversion 降序
//   - QueryGlobalTrending：按 importance 降序
//
// 实现：
//   - store.MemoryContentStore
//   - sqlstore.Store（SQLite）
type ContentStore interface {
	Name() string

	QueryTopicWeighted(ctx context.Context, q *CandidateQuery) ([]ScoredContract, error)

	QueryFollowed(ctx context.Context, q *CandidateQuery) ([]ScoredContract, error)

	QueryGlobalTrending(ctx context.Context, q *TrendingQuery) ([]*Contract, error)
}

// RepostQuery 是转发召回参数。
type RepostQuery struct {
	UserID string
	Limit  int
	Offset int

	// Topics：关注转发传原始画像，话题转发传截断后的话题
	Topics TopicProfile

	// Block 是屏蔽谓词（creator / contract / group）
	Block []Predicate
}

// RepostProvider 是转发候选的领域接口。
// 返回的 Candidate 已带有话题转化分和负载（评论 / 下注 / 转发）。
type RepostProvider interface {
	FollowedReposts(ctx context.Context, q *RepostQuery) ([]*Candidate, error)

	TopicReposts(ctx context.Context, q *RepostQuery) ([]*Candidate, error)
}
