package interest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/feedrank/core"
)

// Resolution 是画像解析结果。ColdStart 为 true 时 Profile 为空。
type Resolution struct {
	Profile   core.TopicProfile
	ColdStart bool
	Rebuilt   bool // 是否触发过一次内联重建
}

// Resolver 为已登录用户取得话题画像：先读缓存，空则内联重建一次再读。
// 两次都为空时返回冷启动，不视为错误。
type Resolver struct {
	cache  core.InterestScoreCache
	logger zerolog.Logger
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewResolver(cache core.InterestScoreCache, logger zerolog.Logger) *Resolver {
	return &Resolver{
		cache:  cache,
		logger: logger.With().Str("component", "interest_resolver").Logger(),
	}
}

func (r *Resolver) Resolve(ctx context.Context, userID string) (*Resolution, error) {
	if userID == "" {
		return nil, core.NewDomainError(core.ModuleInterest, core.ErrorCodeInvalidInput, "interest: empty user id")
	}

	profile, err := r.cache.GetWeights(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !profile.IsEmpty() {
		return &Resolution{Profile: profile}, nil
	}

	if err := r.cache.Rebuild(ctx, []string{userID}); err != nil {
		return nil, fmt.Errorf("interest: rebuild %s: %w", userID, err)
	}
	profile, err = r.cache.GetWeights(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.IsEmpty() {
		r.logger.Debug().Str("user_id", userID).Msg("no interest data, cold start")
		return &Resolution{ColdStart: true, Rebuilt: true}, nil
	}
	return &Resolution{Profile: profile, Rebuilt: true}, nil
}
