package adapters

import (
	"path/filepath"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/internal/controller"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/export"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// MediaProcessor 是处理媒体文件的接口
type MediaProcessor interface {
	ProcessFile(filePath string) bool
	IsRecognizedFile(filePath string) bool
}

// BatchControllerAdapter 批处理控制器适配器，实现MediaProcessor接口
type BatchControllerAdapter struct {
	Controller *controller.BatchController
}

// NewBatchControllerAdapter 创建新的批处理控制器适配器
func NewBatchControllerAdapter(bc *controller.BatchController) *BatchControllerAdapter {
	return &BatchControllerAdapter{
		Controller: bc,
	}
}

// ProcessFile 处理文件
func (a *BatchControllerAdapter) ProcessFile(filePath string) bool {
	result := a.Controller.ProcessFile(filePath)
	if !result.Success {
		utils.Warn("文件 %s 未能转写，文件再次变化时重试", filepath.Base(filePath))
		return false
	}
	utils.Info("处理成功: %s (%d 条)", result.Name, result.Entries)
	return true
}

// IsRecognizedFile 检查结果文件中是否已有该文件
func (a *BatchControllerAdapter) IsRecognizedFile(filePath string) bool {
	sidecar := a.Controller.Config.SidecarFor(filepath.Dir(filePath))
	store, err := export.LoadStore(sidecar)
	if err != nil {
		return false
	}
	_, ok := store[filepath.Base(filePath)]
	return ok
}
