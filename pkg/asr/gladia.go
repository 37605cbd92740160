package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

const (
	// apiKeyHeader Gladia鉴权请求头
	apiKeyHeader = "x-gladia-key"

	pathUpload        = "/upload"
	pathTranscription = "/transcription"
	pathPreRecorded   = "/pre-recorded/"

	// 错误响应体最多读取的字节数
	maxErrorBody = 4096
)

// ClientConfig 转写客户端配置，构造时传入
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client // 为空时按Timeout创建
}

// GladiaClient Gladia语音识别实现
type GladiaClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGladiaClient 创建Gladia客户端，缺少API密钥时返回输入错误
func NewGladiaClient(cfg ClientConfig) (*GladiaClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, utils.NewInputError("缺少API密钥，请设置环境变量 GLADIA_API_KEY", nil)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, utils.NewInputError(fmt.Sprintf("无效的服务地址: %q", cfg.BaseURL), err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &GladiaClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// Upload 以multipart表单上传音频
func (c *GladiaClient) Upload(ctx context.Context, audio *AudioSource) (*UploadResult, error) {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, audio.Name))
	header.Set("Content-Type", audio.ContentType())

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("创建表单文件失败: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, fmt.Errorf("写入文件数据失败: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("关闭表单写入器失败: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathUpload, &requestBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result UploadResult
	if err := c.do(req, "上传音频", &result); err != nil {
		return nil, err
	}
	if result.AudioURL == "" {
		return nil, utils.NewTransportError("上传音频失败: 响应缺少audio_url", 0, nil)
	}

	utils.Debug("上传成功 %s -> %s", audio.Name, result.AudioURL)
	return &result, nil
}

// SubmitJob 提交转写任务
func (c *GladiaClient) SubmitJob(ctx context.Context, audioURL string, opts JobOptions) (string, error) {
	payload := map[string]interface{}{
		"audio_url":   audioURL,
		"diarization": opts.Diarization,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("JSON编码失败: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathTranscription, bytes.NewReader(jsonPayload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		ID        string `json:"id"`
		ResultURL string `json:"result_url"`
	}
	if err := c.do(req, "提交转写任务", &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", utils.NewTransportError("提交转写任务失败: 响应缺少任务ID", 0, nil)
	}

	utils.Debug("任务已创建: %s", result.ID)
	return result.ID, nil
}

// GetStatus 查询一次任务状态
func (c *GladiaClient) GetStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, pathPreRecorded+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	var status JobStatus
	if err := c.do(req, "查询任务状态", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *GladiaClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do 发送请求并解析JSON响应，所有网络和HTTP失败都返回传输错误
func (c *GladiaClient) do(req *http.Request, operation string, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return utils.NewTransportError(operation+"失败", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return utils.NewTransportError(
			fmt.Sprintf("%s失败: HTTP %d %s", operation, resp.StatusCode, providerMessage(body)),
			resp.StatusCode, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.NewTransportError(operation+"失败: 读取响应失败", resp.StatusCode, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return utils.NewTransportError(operation+"失败: 解析JSON响应失败", resp.StatusCode, err)
	}
	return nil
}

// providerMessage 提取服务端错误信息
func providerMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}
