package utils

// Label 是排序链路中的一等公民：可解释、可追踪、可透传。
// 候选的最终 reason、召回来源、请求级状态（冷启动 / 老用户）都以 Label 记录。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / topic / rerank / fallback ...
}

// MergeLabel 用于合并同名 Label，遵循“保留历史、可追踪”的默认策略。
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
