package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// AudioFile 表示一个待转写的音频文件，扫描后不再修改
type AudioFile struct {
	Path string // 文件路径
	Name string // 文件名
	Ext  string // 小写扩展名
	Size int64  // 文件大小（字节）
}

// AudioScanner 用于扫描音频文件
type AudioScanner struct {
	AudioExtensions []string
}

// NewAudioScanner 创建新的音频扫描器
func NewAudioScanner() *AudioScanner {
	return &AudioScanner{
		AudioExtensions: []string{".mp3", ".wav", ".flac"},
	}
}

// IsAudioFile 判断文件名是否为支持的音频格式（不区分大小写）
func (s *AudioScanner) IsAudioFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, audioExt := range s.AudioExtensions {
		if ext == audioExt {
			return true
		}
	}
	return false
}

// ScanDirectory 扫描指定目录中的音频文件（非递归）
// 目录不存在或不是目录时返回输入错误；结果顺序取决于文件系统，调用方需要自行排序
func (s *AudioScanner) ScanDirectory(dir string) ([]AudioFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, utils.NewInputError(fmt.Sprintf("目录 \"%s\" 不存在", dir), nil)
		}
		return nil, utils.NewInputError(fmt.Sprintf("无法访问目录 \"%s\"", dir), err)
	}
	if !info.IsDir() {
		return nil, utils.NewInputError(fmt.Sprintf("\"%s\" 不是目录", dir), nil)
	}

	logrus.Debugf("开始扫描目录: %s", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, utils.NewInputError(fmt.Sprintf("读取目录 \"%s\" 失败", dir), err)
	}

	var audioFiles []AudioFile
	for _, entry := range entries {
		// 跳过目录和隐藏文件
		if entry.IsDir() || !s.IsAudioFile(entry.Name()) {
			continue
		}

		fileInfo, err := entry.Info()
		if err != nil {
			logrus.Warnf("获取文件信息失败: %v", err)
			continue
		}

		audioFiles = append(audioFiles, AudioFile{
			Path: filepath.Join(dir, entry.Name()),
			Name: entry.Name(),
			Ext:  strings.ToLower(filepath.Ext(entry.Name())),
			Size: fileInfo.Size(),
		})
	}

	logrus.Debugf("扫描完成，共找到 %d 个音频文件", len(audioFiles))

	return audioFiles, nil
}
