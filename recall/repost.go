package recall

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/feedrank/core"
)

// FollowedReposts 召回关注用户的转发。传入未注入、未截断的原始画像。
type FollowedReposts struct {
	Provider core.RepostProvider
	Logger   zerolog.Logger
}

func (r *FollowedReposts) Name() string { return "recall.followed_reposts" }

func (r *FollowedReposts) Recall(ctx context.Context, fctx *core.FeedContext) ([]*core.Candidate, error) {
	q := repostQuery(fctx, fctx.Profile)
	cands, err := r.Provider.FollowedReposts(ctx, q)
	if err != nil {
		return nil, err
	}
	return normalizeReposts(cands, core.SourceRepostFollowed, r.Logger), nil
}

// TopicReposts 召回与用户话题相关、非关注用户的转发。传入注入热门话题后、截断前的完整列表。
type TopicReposts struct {
	Provider core.RepostProvider
	Logger   zerolog.Logger
}

func (r *TopicReposts) Name() string { return "recall.topic_reposts" }

func (r *TopicReposts) Recall(ctx context.Context, fctx *core.FeedContext) ([]*core.Candidate, error) {
	q := repostQuery(fctx, fctx.InterestTopics)
	cands, err := r.Provider.TopicReposts(ctx, q)
	if err != nil {
		return nil, err
	}
	return normalizeReposts(cands, core.SourceRepostTopic, r.Logger), nil
}

func repostQuery(fctx *core.FeedContext, topics core.TopicProfile) *core.RepostQuery {
	return &core.RepostQuery{
		UserID: fctx.UserID(),
		Limit:  fctx.Request.Limit,
		Offset: fctx.Request.Offset,
		Topics: topics,
		Block:  fctx.BlockPredicates,
	}
}

// normalizeReposts 补齐来源，并重新校验 Provider 返回的话题分。
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func normalizeReposts(cands []*core.Candidate, source core.Source, logger zerolog.Logger) []*core.Candidate {
	out := make([]*core.Candidate, 0, len(cands))
	for _, c := range cands {
		if c == nil {
			continue
		}
		if _, err := core.NewCandidate(c.Contract, source, c.TopicConversionScore); err != nil {
			logger.Warn().Err(err).Str("source", string(source)).Msg("dropping malformed repost")
			continue
		}
		c.Source = source
		out = append(out, c)
	}
	return out
}
