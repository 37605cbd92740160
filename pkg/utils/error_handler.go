package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrorKind 错误类别
type ErrorKind string

const (
	// KindInput 输入错误（目录参数缺失或无效），批处理致命
	KindInput ErrorKind = "input"
	// KindTransport 上传/提交/轮询的网络或HTTP错误，仅影响当前文件
	KindTransport ErrorKind = "transport"
	// KindParse 已有结果文件存在但无法解析
	KindParse ErrorKind = "parse"
	// KindInternal 其他错误
	KindInternal ErrorKind = "internal"
)

// ErrEmptyBatch 目录中没有匹配的音频文件，不视为失败
var ErrEmptyBatch = errors.New("目录中没有找到音频文件")

// AudioToolsError 是音频工具错误的基础类型
type AudioToolsError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // HTTP状态码，仅传输错误使用
	Cause      error
}

// Error 实现error接口
func (e *AudioToolsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

// Unwrap 支持error chain
func (e *AudioToolsError) Unwrap() error {
	return e.Cause
}

// NewError 创建一个新的AudioToolsError
func NewError(message string, cause error) error {
	return &AudioToolsError{
		Kind:    KindInternal,
		Message: message,
		Cause:   cause,
	}
}

// NewInputError 创建输入错误
func NewInputError(message string, cause error) error {
	return &AudioToolsError{Kind: KindInput, Message: message, Cause: cause}
}

// NewTransportError 创建传输错误，statusCode为0表示没有收到HTTP响应
func NewTransportError(message string, statusCode int, cause error) error {
	return &AudioToolsError{Kind: KindTransport, Message: message, StatusCode: statusCode, Cause: cause}
}

// NewParseError 创建解析错误
func NewParseError(message string, cause error) error {
	return &AudioToolsError{Kind: KindParse, Message: message, Cause: cause}
}

func isKind(err error, kind ErrorKind) bool {
	var toolsErr *AudioToolsError
	if errors.As(err, &toolsErr) {
		return toolsErr.Kind == kind
	}
	return false
}

// IsInputError 判断是否为输入错误
func IsInputError(err error) bool { return isKind(err, KindInput) }

// IsTransportError 判断是否为传输错误
func IsTransportError(err error) bool { return isKind(err, KindTransport) }

// IsParseError 判断是否为解析错误
func IsParseError(err error) bool { return isKind(err, KindParse) }

// ErrorHandler 处理错误和重试
type ErrorHandler struct {
	MaxRetries int
	RetryDelay float64
	ErrorStats map[string]map[string]int // 操作 -> 错误信息 -> 计数

	mu sync.Mutex
}

// NewErrorHandler 创建新的错误处理器
func NewErrorHandler(maxRetries int, retryDelay float64) *ErrorHandler {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &ErrorHandler{
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
		ErrorStats: make(map[string]map[string]int),
	}
}

// Retry 执行函数并在失败时重试，MaxRetries为1时只执行一次
func (h *ErrorHandler) Retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < h.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		h.Record(operation, err)

		if attempt < h.MaxRetries-1 {
			delay := h.RetryDelay * float64(attempt+1)
			Warn("操作 %s 失败 (尝试 %d/%d): %s", operation, attempt+1, h.MaxRetries, err)
			Warn("等待 %.1f 秒后重试...", delay)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(delay * float64(time.Second))):
			}
		}
	}

	if h.MaxRetries == 1 {
		return lastErr
	}
	return fmt.Errorf("操作 %s 重试 %d 次后仍然失败: %w", operation, h.MaxRetries, lastErr)
}

// Record 记录一次错误
func (h *ErrorHandler) Record(operation string, err error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ErrorStats[operation] == nil {
		h.ErrorStats[operation] = make(map[string]int)
	}
	h.ErrorStats[operation][err.Error()]++
}

// GetErrorStats 获取错误统计信息
func (h *ErrorHandler) GetErrorStats() map[string]map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := make(map[string]map[string]int, len(h.ErrorStats))
	for op, errs := range h.ErrorStats {
		copied := make(map[string]int, len(errs))
		for msg, count := range errs {
			copied[msg] = count
		}
		stats[op] = copied
	}
	return stats
}

// PrintErrorStats 打印错误统计信息
func (h *ErrorHandler) PrintErrorStats() {
	stats := h.GetErrorStats()
	if len(stats) == 0 {
		Info("没有错误记录")
		return
	}

	Info("错误统计:")
	for operation, errs := range stats {
		Info("操作: %s", operation)
		for errMsg, count := range errs {
			Info("  - %s: %d次", errMsg, count)
		}
	}
}
