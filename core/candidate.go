package core

import (
	"fmt"
	"math"

	"github.com/rushteam/feedrank/pkg/utils"
)

// Source 标记候选的召回来源。
type Source string

const (
	SourceFollowed       Source = "followed"        // 关注作者的合约
	SourceTrending       Source = "trending"        // 话题加权召回
	SourceRepostFollowed Source = "repost-followed" // 关注用户的转发
	SourceRepostTopic    Source = "repost-topic"    // 话题驱动的转发
)

// IsRepost 判断来源是否为转发。
func (s Source) IsRepost() bool {
	return s == SourceRepostFollowed || s == SourceRepostTopic
}

// 对外返回的推荐理由（idsToReason 的取值）。
const (
	ReasonFollowed   = "followed"
	ReasonTrending   = "trending"
	ReasonImportance = "importance"
)

// DefaultTopicConversionScore 是缺失话题转化分时使用的默认值。
// 注意：它参与乘法，缺失即意味着综合分为 0。
const DefaultTopicConversionScore = 0.0

// Candidate 是一次请求内的候选承载结构：合约、话题转化分、来源、可选的转发负载。
// Labels 用于解释（如最终 reason）；Score 用于排序决策。
type Candidate struct {
	Contract             *Contract
	TopicConversionScore float64
	Source               Source

	// 仅转发来源会携带
	Comment *Comment
	Bet     *Bet
	Repost  *Repost

	Labels map[string]utils.Label
}

// NewCandidate 创建候选，并校验话题转化分（必须为有限非负数）。
func NewCandidate(c *Contract, source Source, topicScore float64) (*Candidate, error) {
	if c == nil {
		return nil, NewDomainError(ModuleRecall, ErrorCodeInvalidInput, "candidate: nil contract")
	}
	if math.IsNaN(topicScore) || math.IsInf(topicScore, 0) || topicScore < 0 {
		return nil, NewDomainError(ModuleRecall, ErrorCodeInvalidInput,
			fmt.Sprintf("candidate %s: invalid topic conversion score %v", c.ID, topicScore))
	}
	return &Candidate{
		Contract:             c,
		TopicConversionScore: topicScore,
		Source:               source,
		Labels:               make(map[string]utils.Label),
	}, nil
}

// TopicScoreOrDefault 把可能缺失的话题转化分显式转换为默认值。
func TopicScoreOrDefault(v *float64) float64 {
	if v == nil {
		return DefaultTopicConversionScore
	}
	return *v
}

// Score 返回综合分：conversion × freshness × topicConversion。
func (c *Candidate) Score() float64 {
	if c == nil || c.Contract == nil {
		return 0
	}
	return c.Contract.ConversionScore * c.Contract.FreshnessScore * c.TopicConversionScore
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (c *Candidate) PutLabel(key string, lbl utils.Label) {
	if c.Labels == nil {
		c.Labels = make(map[string]utils.Label)
	}
	if old, ok := c.Labels[key]; ok {
		c.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	c.Labels[key] = lbl
}

// ScoredContract 是 ContentStore 的返回行：合约 + 该合约命中话题的平均权重。
// TopicScore 为 nil 表示存储没有给出分数。
type ScoredContract struct {
	Contract   *Contract
	TopicScore *float64
}
