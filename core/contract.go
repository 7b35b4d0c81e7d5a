package core

import "time"

// 合约可见性与结果类型。
const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
	VisibilityPrivate  = "private"

	OutcomeTypeBinary           = "BINARY"
	OutcomeTypeMultipleChoice   = "MULTIPLE_CHOICE"
	OutcomeTypeStonk            = "STONK"
	OutcomeTypeBountiedQuestion = "BOUNTIED_QUESTION"
)

// Contract 是平台上可交易的问题市场。
// 三个分数由外部离线任务维护，排序时只读：
//   - ConversionScore：用户参与（转化）的可能性
//   - FreshnessScore：随创建/活跃时间衰减
//   - ImportanceScore：全局重要度，用于冷启动与匿名热门
type Contract struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Question    string    `json:"question"`
	CreatorID   string    `json:"creatorId"`
	OutcomeType string    `json:"outcomeType"`
	Visibility  string    `json:"visibility"`
	CloseTime   time.Time `json:"closeTime"`
	CreatedTime time.Time `json:"createdTime"`
	GroupIDs    []string  `json:"groupIds,omitempty"`

	ConversionScore float64 `json:"conversionScore"`
	FreshnessScore  float64 `json:"freshnessScore"`
	ImportanceScore float64 `json:"importanceScore"`
	ViewCount       int64   `json:"viewCount"`
}

// IsOpen 判断合约在 now 时刻是否仍未关闭。
func (c *Contract) IsOpen(now time.Time) bool {
	return c.CloseTime.After(now)
}

// InGroup 判断合约是否属于某个话题。
func (c *Contract) InGroup(groupID string) bool {
	for _, id := range c.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// Comment 是合约下的评论，转发（Repost）会附带它。
type Comment struct {
	ID          string    `json:"id"`
	ContractID  string    `json:"contractId"`
	UserID      string    `json:"userId"`
	Text        string    `json:"text"`
	Likes       int       `json:"likes"`
	Hidden      bool      `json:"hidden,omitempty"`
	BetID       string    `json:"betId,omitempty"`
	CreatedTime time.Time `json:"createdTime"`
}

// Bet 是一次下注。
type Bet struct {
	ID          string    `json:"id"`
	ContractID  string    `json:"contractId"`
	UserID      string    `json:"userId"`
	Amount      float64   `json:"amount"`
	Outcome     string    `json:"outcome"`
	CreatedTime time.Time `json:"createdTime"`
}

// Repost 是用户对已有合约（带评论）的转发。
type Repost struct {
	ID            string    `json:"id"`
	ContractID    string    `json:"contractId"`
	CommentID     string    `json:"contractCommentId"`
	BetID         string    `json:"betId,omitempty"`
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName"`
	UserUsername  string    `json:"userUsername"`
	UserAvatarURL string    `json:"userAvatarUrl,omitempty"`
	CreatedTime   time.Time `json:"createdTime"`
}
