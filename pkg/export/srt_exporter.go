package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/asr"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// minCueDuration 结束时间缺失时字幕的最短持续时间（秒）
const minCueDuration = 2.0

// SRTExporter 负责将转写结果导出为SRT字幕文件
type SRTExporter struct {
	OutputFolder string
}

// NewSRTExporter 创建一个新的SRT导出器
func NewSRTExporter(outputFolder string) *SRTExporter {
	return &SRTExporter{
		OutputFolder: outputFolder,
	}
}

// FormatSRTTime 将秒数格式化为SRT时间格式 (HH:MM:SS,mmm)
func (e *SRTExporter) FormatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	hours := totalMillis / 3600000
	minutes := totalMillis % 3600000 / 60000
	secs := totalMillis % 60000 / 1000
	milliseconds := totalMillis % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, milliseconds)
}

// GenerateSRTContent 生成SRT格式内容，跳过空白语句
func (e *SRTExporter) GenerateSRTContent(utterances []asr.Utterance) string {
	var srtLines []string
	index := 0

	for _, utterance := range utterances {
		text := strings.TrimSpace(utterance.Text)
		if text == "" {
			continue
		}
		index++

		startTime := utterance.Start
		endTime := utterance.End
		if endTime <= startTime {
			endTime = startTime + minCueDuration
		}

		srtLines = append(srtLines, fmt.Sprintf("%d", index))
		srtLines = append(srtLines, fmt.Sprintf("%s --> %s", e.FormatSRTTime(startTime), e.FormatSRTTime(endTime)))
		srtLines = append(srtLines, text)
		srtLines = append(srtLines, "") // 空行分隔
	}

	return strings.Join(srtLines, "\n")
}

// ExportSRT 导出 <音频文件名>.srt，返回输出路径
func (e *SRTExporter) ExportSRT(utterances []asr.Utterance, audioName string) (string, error) {
	if err := os.MkdirAll(e.OutputFolder, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	baseName := filepath.Base(audioName)
	baseName = strings.TrimSuffix(baseName, filepath.Ext(baseName))
	outputFile := filepath.Join(e.OutputFolder, baseName+".srt")

	srtContent := e.GenerateSRTContent(utterances)
	if err := utils.WriteFileAtomic(outputFile, []byte(srtContent), 0644); err != nil {
		return "", fmt.Errorf("写入SRT文件失败: %w", err)
	}

	utils.Info("已导出SRT字幕: %s", outputFile)
	return outputFile, nil
}
