package store

import (
	"time"

	"github.com/rushteam/feedrank/core"
)

// 转发召回默认参数。
const (
	DefaultRepostWindow        = 7 * 24 * time.Hour
	DefaultRepostMinTopicScore = 0.45
	DefaultScorePrior          = 0.1

	// MaxInterestTopics 是画像构建时读取的预计算话题上限
	MaxInterestTopics = 100
)

// RepostOptions 控制两类转发召回。
type RepostOptions struct {
	// Window：只看该时间窗口内的转发
	Window time.Duration

	// MinTopicScore：话题转发只考虑权重严格大于该值的话题
	MinTopicScore float64

	// StrictCommentUserIDs：这些用户的评论需要至少 2 个赞才进入话题转发
	StrictCommentUserIDs []string

	// ScorePrior：关注转发的合约不在用户画像话题中时使用的话题分
	ScorePrior float64
}

// DefaultRepostOptions 返回默认参数。
func DefaultRepostOptions() RepostOptions {
	return RepostOptions{
		Window:        DefaultRepostWindow,
		MinTopicScore: DefaultRepostMinTopicScore,
		ScorePrior:    DefaultScorePrior,
	}
}

// LikesThreshold 返回评论进入话题转发所需的赞数下限（严格大于）。
func (o RepostOptions) LikesThreshold(commentUserID string) int {
	for _, id := range o.StrictCommentUserIDs {
		if id == commentUserID {
			return 1
		}
	}
	return 0
}

// boostRepostContract 返回转发场景下的合约副本：importance 加上评论赞数，freshness 加 1。
func boostRepostContract(c *core.Contract, likes int) *core.Contract {
	boosted := *c
	boosted.ImportanceScore += float64(likes)
	boosted.FreshnessScore++
	return &boosted
}

// NewRepostCandidate 组装转发候选。
func NewRepostCandidate(
	c *core.Contract,
	comment *core.Comment,
	bet *core.Bet,
	repost *core.Repost,
	source core.Source,
	topicScore float64,
) (*core.Candidate, error) {
	cand, err := core.NewCandidate(boostRepostContract(c, comment.Likes), source, topicScore)
	if err != nil {
		return nil, err
	}
	cand.Comment = comment
	cand.Bet = bet
	cand.Repost = repost
	return cand, nil
}

// Paginate 按 offset / limit 截取；limit <= 0 表示不限。
func Paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
