package engine

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func messageWithAnnotation(value string, annotation any) openai.Message {
	return openai.Message{
		Role: string(openai.ThreadMessageRoleAssistant),
		Content: []openai.MessageContent{{
			Type: "text",
			Text: &openai.MessageText{Value: value, Annotations: []any{annotation}},
		}},
	}
}

func TestNormalize_Text(t *testing.T) {
	answer := Normalize(&RawResponse{
		Kind: ResponseKindText,
		Text: "  布洛芬的儿童剂量为每次 5-10mg/kg。  ",
		Citations: []Citation{
			{Quote: "每次 5-10mg/kg", Source: "file_001"},
			{}, // 空引用应被丢弃
		},
	})
	assert.Equal(t, "布洛芬的儿童剂量为每次 5-10mg/kg。", answer.Answer)
	assert.Equal(t, []Citation{{Quote: "每次 5-10mg/kg", Source: "file_001"}}, answer.Citations)
}

func TestNormalize_EmptyTextFallsBack(t *testing.T) {
	answer := Normalize(&RawResponse{Kind: ResponseKindText, Text: "   "})
	assert.Equal(t, FallbackAnswer, answer.Answer)
	assert.Empty(t, answer.Citations)

	answer = Normalize(nil)
	assert.Equal(t, FallbackAnswer, answer.Answer)
}

func TestNormalize_OpaqueExtraction(t *testing.T) {
	answer := Normalize(&RawResponse{
		Kind: ResponseKindOpaque,
		Opaque: map[string]any{
			"data": "无关字段",
			"content": []any{
				map[string]any{"type": "text", "text": map[string]any{"value": "正文在这里"}},
			},
		},
	})
	assert.Equal(t, "正文在这里", answer.Answer)
	assert.Empty(t, answer.Citations)
}

func TestNormalize_OpaqueUnrecognized(t *testing.T) {
	// 无法抽取正文的载荷退化为字符串形式，兜底文案只留给空载荷
	answer := Normalize(&RawResponse{Kind: ResponseKindOpaque, Opaque: 42})
	assert.Equal(t, "42", answer.Answer)

	answer = Normalize(&RawResponse{Kind: ResponseKindOpaque, Opaque: nil})
	assert.Equal(t, FallbackAnswer, answer.Answer)
}

func TestExtractMessageText_StripsMarkers(t *testing.T) {
	text, citations := extractMessageText(messageWithAnnotation(
		"剂量为每次 5-10mg/kg【4:0†source】。",
		map[string]any{
			"text": "【4:0†source】",
			"file_citation": map[string]any{
				"quote":   "每次 5-10mg/kg",
				"file_id": "file_001",
			},
		},
	))
	assert.Equal(t, "剂量为每次 5-10mg/kg。", text)
	assert.Equal(t, []Citation{{Quote: "每次 5-10mg/kg", Source: "file_001"}}, citations)
}

func TestParseAnnotation_Malformed(t *testing.T) {
	marker, quote, source := parseAnnotation("不是对象")
	assert.Empty(t, marker)
	assert.Empty(t, quote)
	assert.Empty(t, source)
}
