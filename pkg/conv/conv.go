// Package conv 提供从 map[string]any（YAML / koanf 解析结果）读取 Node 配置的泛型工具。
package conv

import (
	"fmt"
	"strings"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32。
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	default:
		return 0, false
	}
}

// ConvertSlice 逐个转换，丢弃转换失败的元素。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// Strings 将 []any、[]string 或逗号分隔的字符串（环境变量）转为 []string。
// 空白元素会被丢弃。
func Strings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return ConvertSlice(val, nonEmpty)
	case string:
		return ConvertSlice(strings.Split(val, ","), nonEmpty)
	case []any:
		return ConvertSlice(val, func(e any) (string, bool) {
			if s, ok := e.(string); ok {
				return nonEmpty(s)
			}
			if f, ok := ToFloat64(e); ok {
				return fmt.Sprintf("%.0f", f), true
			}
			return "", false
		})
	default:
		return nil
	}
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

// ConfigGet 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt 从 config 取 int。YAML 常得到 int，JSON 与 koanf 可能得到 float64 / int64。
func ConfigGetInt(m map[string]any, key string, defaultVal int) int {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if f, ok := ToFloat64(v); ok {
		return int(f)
	}
	return defaultVal
}

// ConfigGetStrings 从 config 取字符串列表，见 Strings。
func ConfigGetStrings(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	return Strings(m[key])
}
