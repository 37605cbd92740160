package ui

import (
	"sync"
)

// ProgressManager 管理多个进度条
type ProgressManager struct {
	progressBars map[string]*ProgressBar
	mutex        sync.Mutex
	enabled      bool
	terminal     *TerminalManager
}

// NewProgressManager 创建新的进度管理器，输出不是终端时自动禁用
func NewProgressManager(terminal *TerminalManager, enabled bool) *ProgressManager {
	return &ProgressManager{
		progressBars: make(map[string]*ProgressBar),
		enabled:      enabled && terminal != nil && terminal.Interactive(),
		terminal:     terminal,
	}
}

// Enabled 是否绘制进度条
func (pm *ProgressManager) Enabled() bool {
	return pm.enabled
}

// CreateProgressBar 创建并注册一个新的进度条，禁用时返回nil
func (pm *ProgressManager) CreateProgressBar(id string, total int, prefix string, suffix string) *ProgressBar {
	if !pm.enabled {
		return nil
	}

	pm.mutex.Lock()
	old, exists := pm.progressBars[id]
	bar := NewProgressBar(pm.terminal, total, prefix, suffix)
	pm.progressBars[id] = bar
	pm.mutex.Unlock()

	// 如果已经存在同名进度条，先完成它
	if exists {
		old.Complete("已被替换")
	}
	return bar
}

// GetProgressBar 获取已存在的进度条
func (pm *ProgressManager) GetProgressBar(id string) *ProgressBar {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	return pm.progressBars[id]
}

// UpdateProgressBar 更新进度条
func (pm *ProgressManager) UpdateProgressBar(id string, current int, suffix string) {
	if bar := pm.GetProgressBar(id); bar != nil {
		bar.Update(current, suffix)
	}
}

// SetStatus 只更新进度条后缀
func (pm *ProgressManager) SetStatus(id string, suffix string) {
	if bar := pm.GetProgressBar(id); bar != nil {
		bar.SetSuffix(suffix)
	}
}

// IncrementProgressBar 进度加一
func (pm *ProgressManager) IncrementProgressBar(id string, suffix string) {
	if bar := pm.GetProgressBar(id); bar != nil {
		bar.Increment(suffix)
	}
}

// CompleteProgressBar 完成进度条并移除
func (pm *ProgressManager) CompleteProgressBar(id string, suffix string) {
	pm.mutex.Lock()
	bar, exists := pm.progressBars[id]
	delete(pm.progressBars, id)
	pm.mutex.Unlock()

	if exists {
		bar.Complete(suffix)
	}
}

// CloseAll 完成所有进度条
func (pm *ProgressManager) CloseAll(suffix string) {
	pm.mutex.Lock()
	bars := make([]*ProgressBar, 0, len(pm.progressBars))
	for _, bar := range pm.progressBars {
		bars = append(bars, bar)
	}
	pm.progressBars = make(map[string]*ProgressBar)
	pm.mutex.Unlock()

	for _, bar := range bars {
		bar.Complete(suffix)
	}
}
