package asr

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// AudioSource 读入内存的音频文件
type AudioSource struct {
	Path     string // 音频文件路径
	Name     string // 文件名
	Data     []byte // 文件二进制内容
	CRC32Hex string // 文件CRC32校验和（十六进制）
}

// LoadAudio 加载音频文件到内存
func LoadAudio(audioPath string) (*AudioSource, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("无效的音频路径 %s: %w", audioPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("无效的音频路径 %s: 是目录", audioPath)
	}

	utils.Debug("从文件读取音频数据: %s", audioPath)
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("读取音频文件失败: %w", err)
	}

	source := &AudioSource{
		Path:     audioPath,
		Name:     filepath.Base(audioPath),
		Data:     data,
		CRC32Hex: fmt.Sprintf("%08x", crc32.ChecksumIEEE(data)),
	}
	utils.Debug("计算的CRC32校验和: %s", source.CRC32Hex)
	return source, nil
}

// ContentType 根据扩展名返回上传时使用的MIME类型
func (a *AudioSource) ContentType() string {
	switch strings.ToLower(filepath.Ext(a.Name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/wav"
	}
}
