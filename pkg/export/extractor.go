package export

import (
	"fmt"
	"strings"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/asr"
)

// Extract 从已完成任务的结果中提取文本和时间
func Extract(result *asr.JobResult, format OutputFormat) (TranscriptResult, error) {
	if result == nil {
		return TranscriptResult{}, fmt.Errorf("转写结果为空")
	}

	utterances := result.Transcription.Utterances
	switch format {
	case FormatWords:
		return TranscriptResult{Format: FormatWords, Words: extractWords(utterances)}, nil
	case FormatUtterances, "":
		return TranscriptResult{Format: FormatUtterances, Utterances: extractUtterances(utterances)}, nil
	}
	return TranscriptResult{}, fmt.Errorf("不支持的输出格式: %s", format)
}

func extractUtterances(utterances []asr.Utterance) *UtteranceResult {
	out := &UtteranceResult{
		StartTimes: make([]TimingEntry, 0, len(utterances)),
		Text:       make([]string, 0, len(utterances)),
	}

	for _, utterance := range utterances {
		out.Text = append(out.Text, utterance.Text)

		if len(utterance.Words) > 1 {
			starts := make([]float64, 0, len(utterance.Words))
			for _, word := range utterance.Words {
				starts = append(starts, word.Start)
			}
			out.StartTimes = append(out.StartTimes, TimingEntry{Words: starts})
			continue
		}
		out.StartTimes = append(out.StartTimes, TimingEntry{Start: utterance.Start})
	}
	return out
}

func extractWords(utterances []asr.Utterance) *WordResult {
	mapping := make(map[string]string)
	var words, times []string

	for _, utterance := range utterances {
		for _, word := range utterance.Words {
			text := strings.TrimSpace(word.Word)
			if text == "" {
				continue
			}
			start := fmt.Sprintf("%.2f", word.Start)

			// 重复单词覆盖之前的时间
			mapping[text] = start
			words = append(words, text)
			times = append(times, start)
		}
	}

	return &WordResult{
		Words:      mapping,
		Text:       strings.Join(words, " "),
		StartTimes: strings.Join(times, " "),
	}
}
