package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// lockRetryDelay 获取结果文件锁时的重试间隔
const lockRetryDelay = 100 * time.Millisecond

// Store 结果文件内容，文件名到转写结果的映射
type Store map[string]TranscriptResult

// Merge 按文件名合并，已存在的键整体覆盖
func (s Store) Merge(delta Store) {
	for name, result := range delta {
		s[name] = result
	}
}

// MergeReport 一次合并写入的结果
type MergeReport struct {
	Path    string
	Entries int   // 写入后的条目总数
	LoadErr error // 已有文件无法解析时的错误，此时按空内容处理
}

// LoadStore 读取结果文件
// 文件不存在返回空内容；内容无法解析时返回空内容和解析错误
func LoadStore(path string) (Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Store{}, nil
		}
		return Store{}, fmt.Errorf("读取结果文件失败: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return Store{}, nil
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return Store{}, utils.NewParseError(fmt.Sprintf("结果文件 %s 格式错误", path), err)
	}
	if store == nil {
		store = Store{}
	}
	return store, nil
}

// SaveStore 以两个空格缩进整体重写结果文件
func SaveStore(path string, store Store) error {
	if store == nil {
		store = Store{}
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("JSON编码失败: %w", err)
	}

	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("写入结果文件失败: %w", err)
	}
	return nil
}

// MergeFile 持有文件锁期间读取、合并并写回结果文件
// 已有内容格式错误不会中止写入，错误记录在 MergeReport.LoadErr
func MergeFile(ctx context.Context, path string, delta Store) (*MergeReport, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	fileLock := flock.New(path + ".lock")
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("获取结果文件锁失败: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("获取结果文件锁失败: %s", path)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			utils.Warn("释放结果文件锁失败: %v", err)
		}
	}()

	report := &MergeReport{Path: path}

	store, err := LoadStore(path)
	if err != nil {
		if !utils.IsParseError(err) {
			return nil, err
		}
		report.LoadErr = err
	}

	store.Merge(delta)
	if err := SaveStore(path, store); err != nil {
		return nil, err
	}

	report.Entries = len(store)
	utils.Debug("已写入结果文件: %s (%d 条)", path, report.Entries)
	return report, nil
}
