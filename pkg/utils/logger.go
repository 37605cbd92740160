package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// 日志级别常量
const (
	LogLevelVerbose = "VERBOSE"
	LogLevelNormal  = "INFO"
	LogLevelQuiet   = "WARN"
	LogLevelError   = "ERROR"
)

// Log 全局日志实例
var Log = logrus.New()

// InitLogger 初始化日志系统
// level: 日志级别 (VERBOSE/INFO/WARN/ERROR)
// logFile: 日志文件路径，空字符串表示仅输出到控制台
func InitLogger(level string, logFile string) error {
	return InitLoggerWithConsole(level, logFile, os.Stdout)
}

// InitLoggerWithConsole 与InitLogger相同，控制台输出写入console
// 包级logrus日志使用同样的设置
func InitLoggerWithConsole(level string, logFile string, console io.Writer) error {
	logger := logrus.New()

	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
	logger.SetFormatter(formatter)

	output := console
	if logFile != "" {
		// 确保日志目录存在
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return fmt.Errorf("创建日志目录失败: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}

		// 同时输出到文件和控制台
		output = io.MultiWriter(console, file)
	}
	logger.SetOutput(output)
	logger.SetLevel(ParseLevel(level))

	logrus.SetFormatter(formatter)
	logrus.SetOutput(output)
	logrus.SetLevel(logger.GetLevel())

	Log = logger
	return nil
}

// ParseLevel 把配置中的日志级别转换为logrus级别，无法识别时使用INFO
func ParseLevel(level string) logrus.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LogLevelVerbose, "DEBUG":
		return logrus.DebugLevel
	case LogLevelNormal:
		return logrus.InfoLevel
	case LogLevelQuiet, "WARNING":
		return logrus.WarnLevel
	case LogLevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetOutput 重定向日志输出，测试中使用
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// Debug 输出调试日志
func Debug(format string, args ...interface{}) {
	if len(args) > 0 {
		Log.Debugf(format, args...)
	} else {
		Log.Debug(format)
	}
}

// Info 输出信息日志
func Info(format string, args ...interface{}) {
	if len(args) > 0 {
		Log.Infof(format, args...)
	} else {
		Log.Info(format)
	}
}

// Warn 输出警告日志
func Warn(format string, args ...interface{}) {
	if len(args) > 0 {
		Log.Warnf(format, args...)
	} else {
		Log.Warn(format)
	}
}

// Error 输出错误日志
func Error(format string, args ...interface{}) {
	if len(args) > 0 {
		Log.Errorf(format, args...)
	} else {
		Log.Error(format)
	}
}

// WithField 创建带字段的日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

// WithFields 创建带多个字段的日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
