package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OutputFormat 结果的存储形态
type OutputFormat string

const (
	// FormatUtterances 按语句记录文本和开始时间（默认）
	FormatUtterances OutputFormat = "utterances"
	// FormatWords 按单词展开记录
	FormatWords OutputFormat = "words"
)

// ParseOutputFormat 解析配置中的格式名，空字符串使用默认格式
func ParseOutputFormat(name string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatUtterances:
		return FormatUtterances, nil
	case FormatWords:
		return FormatWords, nil
	}
	return "", fmt.Errorf("不支持的输出格式: %s", name)
}

// TimingEntry 一条语句的开始时间
// 多个单词时为每个单词的开始时间列表，否则为语句自身的开始时间
type TimingEntry struct {
	Start float64
	Words []float64
}

// IsList 是否为逐词时间列表
func (t TimingEntry) IsList() bool {
	return t.Words != nil
}

// MarshalJSON 标量或数组
func (t TimingEntry) MarshalJSON() ([]byte, error) {
	if t.Words != nil {
		return json.Marshal(t.Words)
	}
	return json.Marshal(t.Start)
}

// UnmarshalJSON 接受数字或数字数组
func (t *TimingEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var words []float64
		if err := json.Unmarshal(data, &words); err != nil {
			return fmt.Errorf("时间列表格式错误: %w", err)
		}
		if words == nil {
			words = []float64{}
		}
		*t = TimingEntry{Words: words}
		return nil
	}

	var start float64
	if err := json.Unmarshal(data, &start); err != nil {
		return fmt.Errorf("时间格式错误: %w", err)
	}
	*t = TimingEntry{Start: start}
	return nil
}

// UtteranceResult 按语句的结果，StartTimes 与 Text 一一对应
type UtteranceResult struct {
	StartTimes []TimingEntry `json:"startTimes"`
	Text       []string      `json:"text"`
}

// WordResult 按单词展开的结果
// Words 为单词到开始时间的映射，重复单词以最后一次为准
type WordResult struct {
	Words      map[string]string `json:"words"`
	Text       string            `json:"text"`
	StartTimes string            `json:"startTimes"`
}

// TranscriptResult 单个文件的转写结果，Format 决定哪个字段有效
type TranscriptResult struct {
	Format     OutputFormat
	Utterances *UtteranceResult
	Words      *WordResult
}

// MarshalJSON 只输出当前形态的字段
func (r TranscriptResult) MarshalJSON() ([]byte, error) {
	switch r.Format {
	case FormatWords:
		if r.Words == nil {
			return nil, fmt.Errorf("words 结果为空")
		}
		words := *r.Words
		if words.Words == nil {
			words.Words = map[string]string{}
		}
		return json.Marshal(words)
	default:
		if r.Utterances == nil {
			return nil, fmt.Errorf("utterances 结果为空")
		}
		utterances := *r.Utterances
		if utterances.StartTimes == nil {
			utterances.StartTimes = []TimingEntry{}
		}
		if utterances.Text == nil {
			utterances.Text = []string{}
		}
		return json.Marshal(utterances)
	}
}

// UnmarshalJSON 根据字段类型识别形态并校验
func (r *TranscriptResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("结果必须是JSON对象: %w", err)
	}

	text, ok := raw["text"]
	if !ok {
		return fmt.Errorf("缺少 text 字段")
	}
	if _, ok := raw["startTimes"]; !ok {
		return fmt.Errorf("缺少 startTimes 字段")
	}

	if t := bytes.TrimSpace(text); len(t) > 0 && t[0] == '"' {
		var words WordResult
		if err := json.Unmarshal(data, &words); err != nil {
			return fmt.Errorf("words 结果格式错误: %w", err)
		}
		if words.Words == nil {
			words.Words = map[string]string{}
		}
		*r = TranscriptResult{Format: FormatWords, Words: &words}
		return nil
	}

	var utterances UtteranceResult
	if err := json.Unmarshal(data, &utterances); err != nil {
		return fmt.Errorf("utterances 结果格式错误: %w", err)
	}
	if len(utterances.StartTimes) != len(utterances.Text) {
		return fmt.Errorf("startTimes (%d) 与 text (%d) 长度不一致", len(utterances.StartTimes), len(utterances.Text))
	}
	*r = TranscriptResult{Format: FormatUtterances, Utterances: &utterances}
	return nil
}

// Len 结果条目数，按语句或按单词
func (r TranscriptResult) Len() int {
	if r.Format == FormatWords {
		if r.Words == nil || r.Words.Text == "" {
			return 0
		}
		return len(strings.Fields(r.Words.Text))
	}
	if r.Utterances == nil {
		return 0
	}
	return len(r.Utterances.Text)
}
