package asr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// ErrPollExhausted 达到最大轮询次数任务仍未完成
var ErrPollExhausted = errors.New("达到最大轮询次数，任务仍未完成")

// ProgressCallback 每次查询后回调，attempt从1开始
type ProgressCallback func(attempt int, status string)

// Poller 按固定间隔查询任务状态直到完成
type Poller struct {
	Client      StatusGetter
	Interval    time.Duration
	MaxAttempts int // 0表示不限次数
	Callback    ProgressCallback

	// wait 在两次查询之间等待，测试中可替换
	wait func(ctx context.Context, d time.Duration) error
}

// NewPoller 创建轮询器
func NewPoller(client StatusGetter, interval time.Duration, maxAttempts int) *Poller {
	return &Poller{
		Client:      client,
		Interval:    interval,
		MaxAttempts: maxAttempts,
		wait:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll 阻塞直到任务状态为done并返回结果
// 查询失败会立即结束轮询；服务端报告error状态视为传输错误
func (p *Poller) Poll(ctx context.Context, jobID string) (*JobResult, error) {
	wait := p.wait
	if wait == nil {
		wait = sleepContext
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		status, err := p.Client.GetStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}

		if p.Callback != nil {
			p.Callback(attempt, status.Status)
		}

		state := PollStateOf(status.Status)
		if state == PollDone {
			if status.Result == nil {
				return nil, utils.NewTransportError(fmt.Sprintf("任务 %s 已完成但没有返回结果", jobID), 0, nil)
			}
			utils.Debug("任务 %s 在第 %d 次查询时完成", jobID, attempt)
			return status.Result, nil
		}

		if status.Status == StatusError {
			return nil, utils.NewTransportError(
				fmt.Sprintf("任务 %s 转写失败 (error_code=%d)", jobID, status.ErrorCode), status.ErrorCode, nil)
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return nil, fmt.Errorf("任务 %s: %w (%d 次)", jobID, ErrPollExhausted, attempt)
		}

		utils.Debug("任务 %s 状态: %s (%s)，%s 后再次查询", jobID, status.Status, state, p.Interval)
		if err := wait(ctx, p.Interval); err != nil {
			return nil, err
		}
	}
}
