package engine

import (
	"fmt"
	"strings"
)

// FallbackAnswer 无法抽取有效回答时返回的兜底文案
const FallbackAnswer = "未能找到与您问题相关的明确答案。"

// Answer 归一化后的回答，任何引擎响应形态最终都收敛到这个结构
type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations,omitempty"`
}

// Normalize 将引擎原始响应归一化为统一回答
// 正文为空时落到兜底文案，形态无法识别时退化为载荷的字符串形式，引用仅在形态完整时透出
func Normalize(raw *RawResponse) Answer {
	if raw == nil {
		return Answer{Answer: FallbackAnswer}
	}
	if raw.Kind == ResponseKindText {
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			return Answer{Answer: FallbackAnswer}
		}
		return Answer{Answer: text, Citations: sanitizeCitations(raw.Citations)}
	}
	if text := strings.TrimSpace(extractText(raw.Opaque)); text != "" {
		return Answer{Answer: text}
	}
	if raw.Opaque != nil {
		if text := strings.TrimSpace(fmt.Sprint(raw.Opaque)); text != "" {
			return Answer{Answer: text}
		}
	}
	return Answer{Answer: FallbackAnswer}
}

// sanitizeCitations 去掉完全为空的引用项
func sanitizeCitations(citations []Citation) []Citation {
	var kept []Citation
	for _, c := range citations {
		if c.Quote == "" && c.Source == "" {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// 未知载荷里可能承载正文的字段名，按可能性排序
var textKeys = []string{"answer", "text", "value", "content", "message", "output"}

// extractText 在未知形态的载荷里尽力找一段正文
func extractText(payload any) string {
	switch v := payload.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range textKeys {
			if nested, ok := v[key]; ok {
				if text := extractText(nested); text != "" {
					return text
				}
			}
		}
	case []any:
		for _, item := range v {
			if text := extractText(item); text != "" {
				return text
			}
		}
	}
	return ""
}
