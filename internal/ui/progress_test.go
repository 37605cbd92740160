package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 模拟终端输出
func newTestTerminal() (*TerminalManager, *bytes.Buffer) {
	var buf bytes.Buffer
	return &TerminalManager{out: &buf, isTerminal: true}, &buf
}

func TestNewProgressBar(t *testing.T) {
	bar := NewProgressBar(nil, 100, "测试", "初始状态")

	assert.Equal(t, 100, bar.Total)
	assert.Equal(t, 0, bar.Current)
	assert.Equal(t, "测试", bar.Prefix)
	assert.Equal(t, "初始状态", bar.Suffix)

	// 总数不合法时至少为1
	assert.Equal(t, 1, NewProgressBar(nil, 0, "", "").Total)
}

func TestUpdate(t *testing.T) {
	terminal, buf := newTestTerminal()
	bar := NewProgressBar(terminal, 100, "测试", "")

	bar.Update(50, "半程")
	assert.Equal(t, 50, bar.Current)
	assert.Equal(t, "半程", bar.Suffix)
	assert.Contains(t, buf.String(), "50/100")

	// 负值忽略
	bar.Update(-10, "")
	assert.Equal(t, 50, bar.Current)

	// 超过最大值截断
	bar.Update(150, "")
	assert.Equal(t, 100, bar.Current)
}

func TestIncrementAndSuffix(t *testing.T) {
	terminal, _ := newTestTerminal()
	bar := NewProgressBar(terminal, 10, "测试", "")

	bar.Increment("递增测试")
	assert.Equal(t, 1, bar.Current)
	assert.Equal(t, "递增测试", bar.Suffix)

	for i := 0; i < 5; i++ {
		bar.Increment("")
	}
	assert.Equal(t, 6, bar.Current)

	bar.SetSuffix("processing")
	assert.Equal(t, 6, bar.Current)
	assert.Contains(t, bar.String(), "processing")
}

func TestComplete(t *testing.T) {
	terminal, buf := newTestTerminal()
	bar := NewProgressBar(terminal, 100, "测试", "")

	bar.Update(50, "")
	bar.Complete("完成")

	assert.Equal(t, 100, bar.Current)
	assert.Equal(t, "完成", bar.Suffix)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"), "完成进度条时应换行")
}

func TestDrawWithTimers(t *testing.T) {
	bar := NewProgressBar(nil, 100, "测试", "")
	bar.StartTime = time.Now().Add(-70 * time.Second)

	bar.Update(20, "")
	assert.Contains(t, bar.String(), "01:10<")
}

func TestNonInteractiveTerminal(t *testing.T) {
	var buf bytes.Buffer
	terminal := NewTerminalManager(&buf)
	assert.False(t, terminal.Interactive())

	terminal.UpdateProgress("进度")
	terminal.PrintMsg("消息 %d", 1)
	assert.Equal(t, "消息 1\n", buf.String())

	pm := NewProgressManager(terminal, true)
	assert.False(t, pm.Enabled())
	assert.Nil(t, pm.CreateProgressBar("batch", 3, "批处理", ""))
	pm.IncrementProgressBar("batch", "")
	pm.CompleteProgressBar("batch", "")
}

func TestPrintMsgClearsProgressLine(t *testing.T) {
	terminal, buf := newTestTerminal()

	terminal.UpdateProgress("进度")
	terminal.PrintMsg("消息")
	assert.Equal(t, "\033[2K\r进度\033[2K\r消息\n", buf.String())

	buf.Reset()
	_, err := terminal.Write([]byte("日志\n"))
	require.NoError(t, err)
	assert.Equal(t, "日志\n", buf.String())
}

func TestProgressManager(t *testing.T) {
	terminal, _ := newTestTerminal()
	pm := NewProgressManager(terminal, true)
	require.True(t, pm.Enabled())

	bar := pm.CreateProgressBar("batch", 3, "批处理", "开始")
	require.NotNil(t, bar)
	assert.Same(t, bar, pm.GetProgressBar("batch"))

	pm.IncrementProgressBar("batch", "a.mp3")
	pm.SetStatus("batch", "queued")
	assert.Equal(t, 1, bar.Current)
	assert.Equal(t, "queued", bar.Suffix)

	pm.CompleteProgressBar("batch", "完成")
	assert.Nil(t, pm.GetProgressBar("batch"))
	assert.Equal(t, 3, bar.Current)

	pm.CreateProgressBar("other", 2, "", "")
	pm.CloseAll("结束")
	assert.Nil(t, pm.GetProgressBar("other"))
}

func TestRenderSummary(t *testing.T) {
	assert.Empty(t, RenderSummary(nil))

	out := RenderSummary([]SummaryRow{
		{File: "1. A - 1.mp3", Success: true, Entries: 12, Duration: "3.2秒"},
		{File: "2. B - 1.mp3", Success: false, Message: "HTTP 401"},
	})

	assert.Contains(t, out, "1. A - 1.mp3")
	assert.Contains(t, out, "成功")
	assert.Contains(t, out, "失败")
	assert.Contains(t, out, "HTTP 401")
	assert.Contains(t, out, "1/2")
}
