package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// fakeProcessor 记录处理过的文件
type fakeProcessor struct {
	mu         sync.Mutex
	recognized map[string]bool
	fail       map[string]bool
	processed  []string
	active     int
	maxActive  int
	done       chan string
	delay      time.Duration
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		recognized: map[string]bool{},
		fail:       map[string]bool{},
		done:       make(chan string, 16),
	}
}

func (p *fakeProcessor) ProcessFile(filePath string) bool {
	p.mu.Lock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.mu.Unlock()

	time.Sleep(p.delay)

	p.mu.Lock()
	p.active--
	p.processed = append(p.processed, filepath.Base(filePath))
	ok := !p.fail[filepath.Base(filePath)]
	p.mu.Unlock()

	p.done <- filepath.Base(filePath)
	return ok
}

func (p *fakeProcessor) IsRecognizedFile(filePath string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recognized[filepath.Base(filePath)]
}

func (p *fakeProcessor) processedFiles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.processed...)
}

func TestTranscribeHandler(t *testing.T) {
	processor := newFakeProcessor()
	processor.recognized["old.mp3"] = true
	processor.fail["bad.mp3"] = true
	handler := NewTranscribeHandler(processor)

	handler.OnFileCreated("/audio/new.mp3")
	handler.OnFileCreated("/audio/new.mp3")
	handler.OnFileCreated("/audio/old.mp3")
	assert.Equal(t, []string{"new.mp3"}, processor.processedFiles())

	// 内容变化后重新转写，即使已有结果
	handler.OnFileModified("/audio/old.mp3")
	assert.Equal(t, []string{"new.mp3", "old.mp3"}, processor.processedFiles())

	// 失败的文件下次事件时重试
	handler.OnFileCreated("/audio/bad.mp3")
	handler.OnFileCreated("/audio/bad.mp3")
	assert.Equal(t, []string{"new.mp3", "old.mp3", "bad.mp3", "bad.mp3"}, processor.processedFiles())

	handler.OnFileDeleted("/audio/new.mp3")
	handler.OnFileCreated("/audio/new.mp3")
	assert.Len(t, processor.processedFiles(), 5)
}

func TestIsTargetName(t *testing.T) {
	monitor, err := NewFolderMonitor(t.TempDir(), []string{".mp3", ".wav"}, nil, time.Millisecond)
	require.NoError(t, err)
	defer monitor.watcher.Close()

	assert.True(t, monitor.isTargetName("/a/b/Talk.MP3"))
	assert.True(t, monitor.isTargetName("x.wav"))
	assert.False(t, monitor.isTargetName("data.json"))
	assert.False(t, monitor.isTargetName(".data.json.123.tmp"))
	assert.False(t, monitor.isTargetName(".hidden.mp3"))
}

func TestStartMissingFolder(t *testing.T) {
	_, err := StartAudioFolderMonitoring(filepath.Join(t.TempDir(), "missing"), []string{".mp3"}, newFakeProcessor(), time.Millisecond)
	assert.True(t, utils.IsInputError(err))
}

func waitProcessed(t *testing.T, processor *fakeProcessor, n int) []string {
	t.Helper()
	var names []string
	timeout := time.After(5 * time.Second)
	for len(names) < n {
		select {
		case name := <-processor.done:
			names = append(names, name)
		case <-timeout:
			t.Fatalf("等待处理超时，已处理: %v", names)
		}
	}
	return names
}

func TestFolderMonitorProcessesNewAudioSequentially(t *testing.T) {
	dir := t.TempDir()
	processor := newFakeProcessor()
	processor.delay = 30 * time.Millisecond

	stop, err := StartAudioFolderMonitoring(dir, []string{".mp3", ".wav", ".flac"}, processor, 50*time.Millisecond)
	require.NoError(t, err)
	defer stop()

	for _, name := range []string{"a.mp3", "b.wav", "c.flac", "notes.txt", "data.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0644))
	}

	names := waitProcessed(t, processor, 3)
	assert.ElementsMatch(t, []string{"a.mp3", "b.wav", "c.flac"}, names)

	// 没有多余的处理
	select {
	case name := <-processor.done:
		t.Fatalf("不应处理 %s", name)
	case <-time.After(200 * time.Millisecond):
	}

	processor.mu.Lock()
	assert.Equal(t, 1, processor.maxActive)
	processor.mu.Unlock()
}

func TestFolderMonitorStopIsIdempotent(t *testing.T) {
	monitor, err := NewFolderMonitor(t.TempDir(), []string{".mp3"}, NewTranscribeHandler(newFakeProcessor()), time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, monitor.Start())

	monitor.Stop()
	monitor.Stop()
}
