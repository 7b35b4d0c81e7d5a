package recall

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/feedrank/core"
)

// TopicWeighted 按用户话题召回合约：命中话题权重的均值作为话题转化分，
// 由存储按 avg(topicScore × conversion × freshness) 降序返回。
type TopicWeighted struct {
	Store  core.ContentStore
	Logger zerolog.Logger
}

func (r *TopicWeighted) Name() string { return "recall.topic_weighted" }

func (r *TopicWeighted) Recall(ctx context.Context, fctx *core.FeedContext) ([]*core.Candidate, error) {
	rows, err := r.Store.QueryTopicWeighted(ctx, candidateQuery(fctx))
	if err != nil {
		return nil, err
	}
	return toCandidates(rows, core.SourceTrending, r.Logger), nil
}

// Followed 召回用户关注的作者创建的合约，按 conversion 降序。
// 它的结果决定最终 reason 是否为 followed。
type Followed struct {
	Store  core.ContentStore
	Logger zerolog.Logger
}

func (r *Followed) Name() string { return "recall.followed" }

func (r *Followed) Recall(ctx context.Context, fctx *core.FeedContext) ([]*core.Candidate, error) {
	rows, err := r.Store.QueryFollowed(ctx, candidateQuery(fctx))
	if err != nil {
		return nil, err
	}
	return toCandidates(rows, core.SourceFollowed, r.Logger), nil
}

func candidateQuery(fctx *core.FeedContext) *core.CandidateQuery {
	return &core.CandidateQuery{
		UserID:     fctx.UserID(),
		Topics:     fctx.Topics,
		Predicates: fctx.Predicates,
		Limit:      fctx.Request.Limit,
		Offset:     fctx.Request.Offset,
	}
}

// toCandidates 把存储行转为候选。缺失的话题分按默认值 0 处理；
// 话题分非法（负数 / NaN / Inf）的行被丢弃并记录告警。
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func toCandidates(rows []core.ScoredContract, source core.Source, logger zerolog.Logger) []*core.Candidate {
	out := make([]*core.Candidate, 0, len(rows))
	for _, row := range rows {
		c, err := core.NewCandidate(row.Contract, source, core.TopicScoreOrDefault(row.TopicScore))
		if err != nil {
			logger.Warn().Err(err).Str("source", string(source)).Msg("dropping malformed candidate")
			continue
		}
		out = append(out, c)
	}
	return out
}
