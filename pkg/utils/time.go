package utils

import (
	"fmt"
	"time"
)

// FormatTimeDuration 格式化时间长度为易读格式
func FormatTimeDuration(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatSeconds 把秒数格式化为两位小数
func FormatSeconds(seconds float64) string {
	return fmt.Sprintf("%.2f", seconds)
}

// GetCurrentTimeString 获取当前时间的字符串表示
func GetCurrentTimeString() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
