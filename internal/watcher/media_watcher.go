package watcher

import (
	"sync"
	"time"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/internal/adapters"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// DefaultDebounce 文件最后一次变化后等待的时间，避免处理未写完的文件
const DefaultDebounce = 3 * time.Second

// TranscribeHandler 新音频文件落地后交给处理器转写
type TranscribeHandler struct {
	processor      adapters.MediaProcessor
	processedFiles map[string]bool
	mutex          sync.Mutex
}

// NewTranscribeHandler 创建转写处理器
func NewTranscribeHandler(processor adapters.MediaProcessor) *TranscribeHandler {
	return &TranscribeHandler{
		processor:      processor,
		processedFiles: make(map[string]bool),
	}
}

// OnFileCreated 处理文件创建事件，已有结果的文件跳过
func (h *TranscribeHandler) OnFileCreated(filePath string) {
	h.process(filePath, true)
}

// OnFileModified 文件内容变化后重新转写
func (h *TranscribeHandler) OnFileModified(filePath string) {
	h.mutex.Lock()
	delete(h.processedFiles, filePath)
	h.mutex.Unlock()

	h.process(filePath, false)
}

// OnFileDeleted 处理文件删除事件
func (h *TranscribeHandler) OnFileDeleted(filePath string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.processedFiles, filePath)
}

func (h *TranscribeHandler) process(filePath string, skipRecognized bool) {
	h.mutex.Lock()
	done := h.processedFiles[filePath]
	h.mutex.Unlock()
	if done {
		return
	}

	if skipRecognized && h.processor.IsRecognizedFile(filePath) {
		utils.Debug("文件已有转写结果，跳过: %s", filePath)
		h.markProcessed(filePath)
		return
	}

	if h.processor.ProcessFile(filePath) {
		h.markProcessed(filePath)
	}
}

func (h *TranscribeHandler) markProcessed(filePath string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.processedFiles[filePath] = true
}

// StartAudioFolderMonitoring 监控目录中新增的音频文件并逐个转写，返回停止函数
func StartAudioFolderMonitoring(folder string, extensions []string, processor adapters.MediaProcessor, debounce time.Duration) (func(), error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	monitor, err := NewFolderMonitor(folder, extensions, NewTranscribeHandler(processor), debounce)
	if err != nil {
		return nil, err
	}

	if err := monitor.Start(); err != nil {
		return nil, err
	}

	return monitor.Stop, nil
}
