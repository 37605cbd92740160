package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ProgressBar 进度条结构
type ProgressBar struct {
	Total      int       // 总步数
	Current    int       // 当前进度
	Prefix     string    // 前缀
	Suffix     string    // 后缀
	Width      int       // 进度条宽度
	FillChar   string    // 填充字符
	EmptyChar  string    // 空白字符
	StartTime  time.Time // 开始时间
	LastUpdate time.Time // 上次更新时间

	mu       sync.Mutex
	terminal *TerminalManager
}

// NewProgressBar 创建新的进度条
func NewProgressBar(terminal *TerminalManager, total int, prefix string, suffix string) *ProgressBar {
	if total <= 0 {
		total = 1
	}
	return &ProgressBar{
		Total:      total,
		Current:    0,
		Prefix:     prefix,
		Suffix:     suffix,
		Width:      30,
		FillChar:   "█",
		EmptyChar:  "░",
		StartTime:  time.Now(),
		LastUpdate: time.Now(),
		terminal:   terminal,
	}
}

// Update 更新进度
func (p *ProgressBar) Update(current int, suffix string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if current < 0 {
		return
	}
	if current > p.Total {
		current = p.Total
	}

	p.Current = current
	if suffix != "" {
		p.Suffix = suffix
	}

	p.LastUpdate = time.Now()
	p.draw()
}

// SetSuffix 只更新后缀，用于显示轮询状态
func (p *ProgressBar) SetSuffix(suffix string) {
	p.mu.Lock()
	current := p.Current
	p.mu.Unlock()
	p.Update(current, suffix)
}

// Increment 增加进度
func (p *ProgressBar) Increment(suffix string) {
	p.mu.Lock()
	next := p.Current + 1
	p.mu.Unlock()
	p.Update(next, suffix)
}

// Complete 完成进度条
func (p *ProgressBar) Complete(suffix string) {
	p.Update(p.Total, suffix)
	if p.terminal != nil {
		p.terminal.EndProgress()
	}
}

// 绘制进度条
func (p *ProgressBar) draw() {
	if p.terminal == nil {
		return
	}
	p.terminal.UpdateProgress(color.CyanString(p.line()))
}

func (p *ProgressBar) line() string {
	percent := float64(p.Current) / float64(p.Total)
	filled := int(percent * float64(p.Width))
	if filled > p.Width {
		filled = p.Width
	}

	bar := strings.Repeat(p.FillChar, filled) + strings.Repeat(p.EmptyChar, p.Width-filled)

	elapsed := p.LastUpdate.Sub(p.StartTime)

	// 估计剩余时间
	var remaining time.Duration
	if p.Current > 0 {
		remaining = time.Duration(float64(elapsed) / percent * (1 - percent))
	}

	return fmt.Sprintf("%s [%s] %3.0f%% | %d/%d | %s<%s | %s",
		p.Prefix, bar, percent*100, p.Current, p.Total, formatDuration(elapsed), formatDuration(remaining), p.Suffix)
}

// String 返回进度条的字符串表示
func (p *ProgressBar) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line()
}

// 格式化持续时间为 MM:SS 格式
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
