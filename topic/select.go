package topic

import (
	"fmt"
	"sort"

	"github.com/rushteam/feedrank/core"
)

// 默认参数。
const (
	DefaultEstablishedMinTopics = 100
	DefaultMaxTrendingInjected  = 10
	DefaultMaxTopics            = 350
	DefaultScorePrior           = 0.1
)

// ErrNoTopics 表示截断后没有可评估的话题。
var ErrNoTopics = core.NewDomainError(core.ModuleTopic, core.ErrorCodeNoTopics, "topic: no topics left after cutoff")

// Options 控制话题注入与截断。
type Options struct {
	// EstablishedMinTopics：画像话题数达到该值视为老用户，注入热门话题
	EstablishedMinTopics int `yaml:"established_min_topics" koanf:"established_min_topics"`

	// MaxTrendingInjected：最多注入的热门话题数
	MaxTrendingInjected int `yaml:"max_trending_injected" koanf:"max_trending_injected"`

	// MaxTopics：话题数超过该值时启用截断
	MaxTopics int `yaml:"max_topics" koanf:"max_topics"`

	// ScorePrior：截断时只统计权重严格大于该值的话题数
	ScorePrior float64 `yaml:"score_prior" koanf:"score_prior"`
}

// DefaultOptions 返回默认参数。
func DefaultOptions() Options {
	return Options{
		EstablishedMinTopics: DefaultEstablishedMinTopics,
		MaxTrendingInjected:  DefaultMaxTrendingInjected,
		MaxTopics:            DefaultMaxTopics,
		ScorePrior:           DefaultScorePrior,
	}
}

// Validate 校验参数。
func (o Options) Validate() error {
	if o.EstablishedMinTopics < 0 || o.MaxTrendingInjected < 0 {
		return fmt.Errorf("topic: negative established_min_topics or max_trending_injected")
	}
	if o.MaxTopics <= 0 {
		return fmt.Errorf("topic: max_topics must be positive, got %d", o.MaxTopics)
	}
	if o.ScorePrior < 0 {
		return fmt.Errorf("topic: score_prior must be non-negative, got %v", o.ScorePrior)
	}
	return nil
}

// Established 判断画像是否属于老用户（需要注入热门话题）。
func (o Options) Established(profile core.TopicProfile) bool {
	return profile.Len() >= o.EstablishedMinTopics
}

// Selection 是话题选择结果。
type Selection struct {
	// All 是注入热门话题后、截断前的完整列表
	All core.TopicProfile

	// Topics 是注入并截断后的有序话题列表（All 的前缀）
	Topics core.TopicProfile

	// Injected 是注入的热门话题数
	Injected int

	// Cutoff 是保留的话题数（== len(Topics)）
	Cutoff int
}

// Select 对画像注入热门话题并截断。
//
// 规则：
//  1. 老用户：取最多 MaxTrendingInjected 个不在画像中的热门话题，按热度降序
//     （同分按话题 ID 升序）追加到末尾，权重即热度
//  2. 话题数 > MaxTopics 时，cutoff = min(权重 > ScorePrior 的个数, MaxTopics)，否则 cutoff = 话题数
//  3. 按原顺序保留前 cutoff 个，不重新排序
//
// profile 不会被修改。cutoff 为 0 时仍返回 Selection（Topics 为空，All 完整）和 ErrNoTopics。
func Select(profile core.TopicProfile, trending map[string]float64, opts Options) (*Selection, error) {
	topics := profile.Clone()

	injected := 0
	if opts.Established(profile) && len(trending) > 0 && opts.MaxTrendingInjected > 0 {
		extra := unseenTrending(profile, trending, opts.MaxTrendingInjected)
		topics = append(topics, extra...)
		injected = len(extra)
	}

	cutoff := len(topics)
	if len(topics) > opts.MaxTopics {
		above := 0
		for _, tw := range topics {
			if tw.Weight > opts.ScorePrior {
				above++
			}
		}
		cutoff = min(above, opts.MaxTopics)
	}

	sel := &Selection{
		All:      topics,
		Topics:   topics[:cutoff:cutoff],
		Injected: injected,
		Cutoff:   cutoff,
	}
	if cutoff == 0 {
		return sel, ErrNoTopics
	}
	return sel, nil
}

func unseenTrending(profile core.TopicProfile, trending map[string]float64, limit int) core.TopicProfile {
	have := make(map[string]struct{}, profile.Len())
	for _, tw := range profile {
		have[tw.TopicID] = struct{}{}
	}
	out := make(core.TopicProfile, 0, len(trending))
	for id, score := range trending {
		if _, ok := have[id]; ok {
			continue
		}
		out = append(out, core.TopicWeight{TopicID: id, Weight: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].TopicID < out[j].TopicID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
