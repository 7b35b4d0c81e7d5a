package core

// TopicWeight 是单个话题的兴趣权重（由转化统计得出，非负）。
type TopicWeight struct {
	TopicID string  `json:"topicId"`
	Weight  float64 `json:"weight"`
}

// TopicProfile 是用户的话题兴趣画像。
//
// 设计要点：
//   - 有序：截断（cutoff）按原始顺序保留前 N 个，不重新排序
//   - 只读：画像归 Interest Score Cache 所有，一次请求内不修改
//   - 整体替换：缓存只整体写入，不会出现半填充的画像
type TopicProfile []TopicWeight

// Len 返回话题数量。
func (p TopicProfile) Len() int { return len(p) }

// IsEmpty 判断画像是否为空。
func (p TopicProfile) IsEmpty() bool { return len(p) == 0 }

// IDs 返回话题 ID 列表（与 Weights 平行）。
func (p TopicProfile) IDs() []string {
	ids := make([]string, len(p))
	for i, tw := range p {
		ids[i] = tw.TopicID
	}
	return ids
}

// Weights 返回权重列表（与 IDs 平行）。
func (p TopicProfile) Weights() []float64 {
	ws := make([]float64, len(p))
	for i, tw := range p {
		ws[i] = tw.Weight
	}
	return ws
}

// Map 返回 topicID -> weight。
func (p TopicProfile) Map() map[string]float64 {
	m := make(map[string]float64, len(p))
	for _, tw := range p {
		m[tw.TopicID] = tw.Weight
	}
	return m
}

// Has 判断画像中是否已有该话题。
func (p TopicProfile) Has(topicID string) bool {
	for _, tw := range p {
		if tw.TopicID == topicID {
			return true
		}
	}
	return false
}

// Clone 返回副本，避免追加时修改缓存持有的底层数组。
func (p TopicProfile) Clone() TopicProfile {
	if p == nil {
		return nil
	}
	out := make(TopicProfile, len(p))
	copy(out, p)
	return out
}
