package recall

import (
	"context"

	"github.com/rushteam/feedrank/core"
)

// Source 表示一个可并发 fan-out 的召回源（话题加权 / 关注作者 / 关注转发 / 话题转发）。
// 召回源只读 FeedContext，不修改它。
type Source interface {
	Name() string
	Recall(ctx context.Context, fctx *core.FeedContext) ([]*core.Candidate, error)
}
