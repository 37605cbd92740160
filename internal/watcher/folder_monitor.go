package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// FileEventHandler 是处理文件事件的接口
type FileEventHandler interface {
	OnFileCreated(filePath string)
	OnFileModified(filePath string)
	OnFileDeleted(filePath string)
}

// pendingFile 防抖期间累积的事件
type pendingFile struct {
	timer *time.Timer
	op    fsnotify.Op
}

// FolderMonitor 监控文件夹变化，事件按到达顺序逐个交给处理器
type FolderMonitor struct {
	watcher        *fsnotify.Watcher
	folderPath     string
	fileExtensions []string
	handler        FileEventHandler
	debounceTime   time.Duration
	pendingFiles   map[string]*pendingFile
	queue          chan queuedEvent
	mutex          sync.Mutex
	stopChan       chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

type queuedEvent struct {
	path string
	op   fsnotify.Op
}

// NewFolderMonitor 创建新的文件夹监控器
func NewFolderMonitor(folderPath string, extensions []string, handler FileEventHandler, debounceTime time.Duration) (*FolderMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	monitor := &FolderMonitor{
		watcher:        watcher,
		folderPath:     folderPath,
		fileExtensions: extensions,
		handler:        handler,
		debounceTime:   debounceTime,
		pendingFiles:   make(map[string]*pendingFile),
		queue:          make(chan queuedEvent, 64),
		stopChan:       make(chan struct{}),
	}

	return monitor, nil
}

// Start 开始监控文件夹
func (m *FolderMonitor) Start() error {
	if !utils.CheckDirExists(m.folderPath) {
		m.watcher.Close()
		return utils.NewInputError(fmt.Sprintf("目录 \"%s\" 不存在", m.folderPath), nil)
	}

	if err := m.watcher.Add(m.folderPath); err != nil {
		m.watcher.Close()
		return fmt.Errorf("添加监控文件夹失败: %w", err)
	}

	m.wg.Add(2)
	go m.watchLoop()
	go m.dispatchLoop()

	utils.Info("开始监控文件夹: %s", m.folderPath)
	return nil
}

// Stop 停止监控，等待正在处理的文件结束
func (m *FolderMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.watcher.Close()

		// 取消所有待处理的文件定时器
		m.mutex.Lock()
		for _, pending := range m.pendingFiles {
			pending.timer.Stop()
		}
		m.pendingFiles = make(map[string]*pendingFile)
		m.mutex.Unlock()

		m.wg.Wait()
		utils.Info("停止监控文件夹: %s", m.folderPath)
	})
}

// watchLoop 监控循环
func (m *FolderMonitor) watchLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopChan:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleFileEvent(event)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			utils.Error("监控文件夹时出错: %v", err)
		}
	}
}

// dispatchLoop 串行调用处理器
func (m *FolderMonitor) dispatchLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopChan:
			return
		case event := <-m.queue:
			m.dispatch(event)
		}
	}
}

func (m *FolderMonitor) dispatch(event queuedEvent) {
	if m.handler == nil {
		return
	}

	if event.op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		m.handler.OnFileDeleted(event.path)
		return
	}

	// 检查文件是否仍然存在
	if _, err := os.Stat(event.path); os.IsNotExist(err) {
		return
	}

	utils.Info("准备处理文件: %s", event.path)
	if event.op&fsnotify.Create != 0 {
		m.handler.OnFileCreated(event.path)
	} else {
		m.handler.OnFileModified(event.path)
	}
}

// 处理文件事件
func (m *FolderMonitor) handleFileEvent(event fsnotify.Event) {
	filePath := event.Name
	if !m.isTargetName(filePath) {
		return
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		m.mutex.Lock()
		if pending, exists := m.pendingFiles[filePath]; exists {
			pending.timer.Stop()
			delete(m.pendingFiles, filePath)
		}
		m.mutex.Unlock()
		m.enqueue(queuedEvent{path: filePath, op: event.Op})
		return
	}

	// 只处理创建和修改事件
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if info, err := os.Stat(filePath); err != nil || info.IsDir() {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	op := event.Op
	if pending, exists := m.pendingFiles[filePath]; exists {
		pending.timer.Stop()
		op |= pending.op
	}

	pending := &pendingFile{op: op}
	pending.timer = time.AfterFunc(m.debounceTime, func() {
		m.flush(filePath, pending)
	})
	m.pendingFiles[filePath] = pending

	utils.Debug("检测到文件变化: %s", filePath)
}

// flush 防抖结束后入队
func (m *FolderMonitor) flush(filePath string, pending *pendingFile) {
	m.mutex.Lock()
	current, exists := m.pendingFiles[filePath]
	if !exists || current != pending {
		m.mutex.Unlock()
		return
	}
	delete(m.pendingFiles, filePath)
	m.mutex.Unlock()

	m.enqueue(queuedEvent{path: filePath, op: pending.op})
}

func (m *FolderMonitor) enqueue(event queuedEvent) {
	select {
	case m.queue <- event:
	case <-m.stopChan:
	}
}

// 判断是否为目标文件类型，忽略隐藏文件和临时文件
func (m *FolderMonitor) isTargetName(filePath string) bool {
	name := filepath.Base(filePath)
	if strings.HasPrefix(name, ".") {
		return false
	}

	ext := strings.ToLower(filepath.Ext(name))
	for _, targetExt := range m.fileExtensions {
		if ext == targetExt {
			return true
		}
	}
	return false
}
