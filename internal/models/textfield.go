// internal/models/textfield.go
package models

import (
	"encoding/json"
	"strings"
)

// FlexText 兼容模型返回的"字符串或对象"两种形态的文本字段。
// 部分模型会把纯文本包装成 {"content": "..."} / {"text": "..."} / {"summary": "..."}，
// 统一在反序列化时拆包，保证下游只见到干净的字符串。
type FlexText string

// UnmarshalJSON 实现宽容解析：依次尝试字符串、包装对象、任意值字符串化
func (f *FlexText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexText(s)
		return nil
	}

	var wrapped struct {
		Content string `json:"content"`
		Text    string `json:"text"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		switch {
		case wrapped.Content != "":
			*f = FlexText(wrapped.Content)
			return nil
		case wrapped.Text != "":
			*f = FlexText(wrapped.Text)
			return nil
		case wrapped.Summary != "":
			*f = FlexText(wrapped.Summary)
			return nil
		}
	}

	// 最后手段：保留原始JSON文本，至少不丢数据
	*f = FlexText(strings.TrimSpace(string(data)))
	return nil
}

func (f FlexText) String() string {
	return string(f)
}

// CleanText 对任意已解码的值应用同一套归一化规则。
// 与 FlexText.UnmarshalJSON 保持一致，供无法走反序列化路径的调用点使用。
// 对已经干净的字符串是幂等的。
func CleanText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case FlexText:
		return string(val)
	case map[string]interface{}:
		for _, key := range []string{"content", "text", "summary"} {
			if inner, ok := val[key].(string); ok && inner != "" {
				return inner
			}
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return strings.Trim(string(raw), `"`)
	}
}
