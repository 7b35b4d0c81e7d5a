package core

import "context"

// Store 是存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//   - 避免循环依赖：领域层不依赖基础设施层
//
// 使用场景：
//   - 兴趣画像缓存：{prefix}:{userID} -> JSON 画像
//
// 实现：
//   - store.MemoryStore 实现此接口
//   - store.RedisStore 实现此接口
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值，不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key（任意类型）
	Delete(ctx context.Context, key string) error

	// Close 关闭连接/释放资源
	Close() error
}

// KeyValueStore 是 Store 的扩展接口，支持有序集合与哈希表。
//
// 使用场景：
//   - 热门话题快照：有序集合 topic -> score，整体替换
//   - 快照元数据：哈希表 refreshed_at / window / topics
type KeyValueStore interface {
	Store

	// ZReplace 用 members 原子地替换整个有序集合；members 为空时等同删除
	ZReplace(ctx context.Context, key string, members []ScoredMember) error

	// ZRangeWithScores 按分数降序返回 [start, stop] 的成员，stop 为负数表示到末尾
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// HSet 写入 Hash 的多个字段
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HGetAll 读取整个 Hash，不存在时返回空 map
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// ScoredMember 是有序集合中的成员及其分数。
type ScoredMember struct {
	Member string
	Score  float64
}

// ErrStoreNotFound 表示 key 不存在。
var ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

// IsStoreNotFound 检查错误是否为 store 模块的 NOT_FOUND
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
