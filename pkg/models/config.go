package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

const (
	// EnvAPIKey 转写服务API密钥的环境变量
	EnvAPIKey = "GLADIA_API_KEY"
	// EnvBaseURL 覆盖服务地址的环境变量
	EnvBaseURL = "GLADIA_API_URL"

	// DefaultBaseURL Gladia API地址
	DefaultBaseURL = "https://api.gladia.io/v2"
	// DefaultSidecarName 与音频同目录的结果文件名
	DefaultSidecarName = "data.json"
)

// 输出格式
const (
	FormatUtterances = "utterances"
	FormatWords      = "words"
)

// 排序策略
const (
	SequenceAscending   = "ascending"
	SequenceInterleaved = "interleaved"
)

// Config 表示应用程序的配置
type Config struct {
	BaseURL         string  `json:"base_url" toml:"base_url"`                   // 转写服务地址
	APIKey          string  `json:"api_key,omitempty" toml:"api_key"`           // API密钥，通常来自环境变量
	PollInterval    float64 `json:"poll_interval" toml:"poll_interval"`         // 轮询间隔（秒）
	MaxPollAttempts int     `json:"max_poll_attempts" toml:"max_poll_attempts"` // 最大轮询次数，0表示不限
	RequestTimeout  int     `json:"request_timeout" toml:"request_timeout"`     // 单次HTTP请求超时（秒）
	Diarization     bool    `json:"diarization" toml:"diarization"`             // 是否请求说话人分离
	OutputFormat    string  `json:"output_format" toml:"output_format"`         // 结果格式 (utterances, words)
	Sequence        string  `json:"sequence" toml:"sequence"`                   // 处理顺序 (ascending, interleaved)
	DropUnmatched   bool    `json:"drop_unmatched" toml:"drop_unmatched"`       // 交错排序时丢弃不符合命名规则的文件
	SidecarPath     string  `json:"sidecar_path" toml:"sidecar_path"`           // 固定的结果文件路径，空表示与音频同目录
	SidecarName     string  `json:"sidecar_name" toml:"sidecar_name"`           // 同目录结果文件名
	ExportSRT       bool    `json:"export_srt" toml:"export_srt"`               // 是否导出SRT字幕文件
	ShowProgress    bool    `json:"show_progress" toml:"show_progress"`         // 显示进度条
	WatchMode       bool    `json:"watch_mode" toml:"watch_mode"`               // 处理完成后继续监听目录
	MaxRetries      int     `json:"max_retries" toml:"max_retries"`             // 上传/提交最大尝试次数
	RetryDelay      float64 `json:"retry_delay" toml:"retry_delay"`             // 重试延迟（秒）
	LogLevel        string  `json:"log_level" toml:"log_level"`                 // 日志级别
	LogFile         string  `json:"log_file" toml:"log_file"`                   // 日志文件
}

// ConfigValidationError 表示配置验证错误
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("配置验证错误: %s - %s", e.Field, e.Message)
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		PollInterval:    5,
		MaxPollAttempts: 0,
		RequestTimeout:  120,
		Diarization:     true,
		OutputFormat:    FormatUtterances,
		Sequence:        SequenceAscending,
		DropUnmatched:   false,
		SidecarPath:     "",
		SidecarName:     DefaultSidecarName,
		ExportSRT:       false,
		ShowProgress:    true,
		WatchMode:       false,
		MaxRetries:      1,
		RetryDelay:      1.0,
		LogLevel:        "INFO",
		LogFile:         "",
	}
}

// Validate 验证配置是否有效
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return &ConfigValidationError{"BaseURL", "不能为空"}
	}

	if c.PollInterval < 1 || c.PollInterval > 60 {
		return &ConfigValidationError{"PollInterval", "必须在1-60秒之间"}
	}

	if c.MaxPollAttempts < 0 {
		return &ConfigValidationError{"MaxPollAttempts", "不能为负数"}
	}

	if c.RequestTimeout < 1 || c.RequestTimeout > 3600 {
		return &ConfigValidationError{"RequestTimeout", "必须在1-3600秒之间"}
	}

	switch c.OutputFormat {
	case FormatUtterances, FormatWords:
	default:
		return &ConfigValidationError{"OutputFormat", "必须是 utterances 或 words"}
	}

	switch c.Sequence {
	case SequenceAscending, SequenceInterleaved:
	default:
		return &ConfigValidationError{"Sequence", "必须是 ascending 或 interleaved"}
	}

	if c.SidecarPath == "" && strings.TrimSpace(c.SidecarName) == "" {
		return &ConfigValidationError{"SidecarName", "未指定固定路径时不能为空"}
	}

	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return &ConfigValidationError{"MaxRetries", "必须在1-10之间"}
	}

	if c.RetryDelay < 0.1 || c.RetryDelay > 60.0 {
		return &ConfigValidationError{"RetryDelay", "必须在0.1-60.0秒之间"}
	}

	return nil
}

// LoadFromFile 从文件加载配置，按扩展名选择JSON或TOML
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("读取配置文件失败: %v", err)
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		logrus.Errorf("解析配置文件失败: %v", err)
		return fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		logrus.Errorf("配置验证失败: %v", err)
		return err
	}

	return nil
}

// SaveToFile 保存配置到文件，不写入API密钥
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	copied := *c
	copied.APIKey = ""

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		data, err = toml.Marshal(copied)
	default:
		data, err = json.MarshalIndent(copied, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// LoadEnv 从.env文件和进程环境读取密钥和服务地址
// envFile为空时尝试当前目录的.env，文件不存在不视为错误
func (c *Config) LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("加载环境文件 %s 失败: %w", envFile, err)
	}

	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		c.APIKey = key
	}
	if url := strings.TrimSpace(os.Getenv(EnvBaseURL)); url != "" {
		c.BaseURL = url
	}
	return nil
}

// SidecarFor 返回某个音频目录对应的结果文件路径
func (c *Config) SidecarFor(audioDir string) string {
	if c.SidecarPath != "" {
		return c.SidecarPath
	}
	return filepath.Join(audioDir, c.SidecarName)
}

// Reset 重置为默认配置
func (c *Config) Reset() {
	*c = *NewDefaultConfig()
}

// PrintConfig 打印当前配置（隐藏密钥）
func (c *Config) PrintConfig() {
	copied := *c
	if copied.APIKey != "" {
		copied.APIKey = "***"
	}
	bytes, err := json.MarshalIndent(copied, "", "  ")
	if err != nil {
		logrus.Errorf("序列化配置失败: %v", err)
		return
	}
	logrus.Debugf("当前配置:\n%s", string(bytes))
}
