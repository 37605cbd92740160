package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// TerminalManager 管理终端输出，确保进度条和消息不会混乱
type TerminalManager struct {
	mu         sync.Mutex
	out        io.Writer
	isTerminal bool
	inProgress bool // 当前行是否为未换行的进度条
}

// NewTerminalManager 创建终端管理器，只有输出为终端时才绘制进度
func NewTerminalManager(out io.Writer) *TerminalManager {
	return &TerminalManager{
		out:        out,
		isTerminal: IsTerminal(out),
	}
}

// IsTerminal 判断输出是否为交互式终端
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Interactive 输出是否为终端
func (tm *TerminalManager) Interactive() bool {
	return tm.isTerminal
}

// PrintMsg 安全地打印消息
func (tm *TerminalManager) PrintMsg(format string, args ...interface{}) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	// 清除当前行，以防止与进度条冲突
	if tm.inProgress {
		fmt.Fprint(tm.out, "\033[2K\r")
		tm.inProgress = false
	}
	fmt.Fprintf(tm.out, format+"\n", args...)
}

// UpdateProgress 覆盖当前行显示进度，非终端时忽略
func (tm *TerminalManager) UpdateProgress(line string) {
	if !tm.isTerminal {
		return
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	fmt.Fprint(tm.out, "\033[2K\r")
	fmt.Fprint(tm.out, line)
	tm.inProgress = true
}

// EndProgress 结束进度行
func (tm *TerminalManager) EndProgress() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.inProgress {
		fmt.Fprintln(tm.out)
		tm.inProgress = false
	}
}

// Write 实现io.Writer，供日志输出使用
func (tm *TerminalManager) Write(p []byte) (int, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.inProgress {
		fmt.Fprint(tm.out, "\033[2K\r")
		tm.inProgress = false
	}
	return tm.out.Write(p)
}
