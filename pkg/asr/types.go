package asr

import "context"

// 任务状态
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// PollState 轮询状态机的状态
type PollState int

const (
	// PollPending 任务尚未完成
	PollPending PollState = iota
	// PollDone 任务已完成，结果可用
	PollDone
)

func (s PollState) String() string {
	if s == PollDone {
		return "Done"
	}
	return "Pending"
}

// PollStateOf 把服务端状态映射为轮询状态，只有 "done" 是终态
func PollStateOf(status string) PollState {
	if status == StatusDone {
		return PollDone
	}
	return PollPending
}

// AudioMetadata 上传后服务端返回的音频信息
type AudioMetadata struct {
	ID               string  `json:"id"`
	Filename         string  `json:"filename"`
	Extension        string  `json:"extension"`
	Size             int64   `json:"size"`
	AudioDuration    float64 `json:"audio_duration"`
	NumberOfChannels int     `json:"number_of_channels"`
}

// UploadResult 上传接口的响应
type UploadResult struct {
	AudioURL      string        `json:"audio_url"`
	AudioMetadata AudioMetadata `json:"audio_metadata"`
}

// JobOptions 提交转写任务的选项
type JobOptions struct {
	Diarization bool
}

// TranscriptionJob 已提交的转写任务，轮询期间持有
type TranscriptionJob struct {
	ID           string
	AudioURL     string
	FilePath     string
	ResolvedName string
}

// Word 单词及其时间
type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Utterance 一段连续语音
type Utterance struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Speaker    int     `json:"speaker"`
	Channel    int     `json:"channel"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// Transcription 转写内容
type Transcription struct {
	FullTranscript string      `json:"full_transcript"`
	Languages      []string    `json:"languages"`
	Utterances     []Utterance `json:"utterances"`
}

// JobResult 任务完成后的结果
type JobResult struct {
	Transcription Transcription `json:"transcription"`
}

// JobStatus 一次状态查询的响应，Result只在status为done时存在
type JobStatus struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	ErrorCode int        `json:"error_code,omitempty"`
	Result    *JobResult `json:"result,omitempty"`
}

// StatusGetter 查询任务状态
type StatusGetter interface {
	GetStatus(ctx context.Context, jobID string) (*JobStatus, error)
}

// Transcriber 定义了远程转写服务的接口
type Transcriber interface {
	StatusGetter
	// Upload 上传音频内容
	Upload(ctx context.Context, audio *AudioSource) (*UploadResult, error)
	// SubmitJob 提交转写任务并返回任务ID
	SubmitJob(ctx context.Context, audioURL string, opts JobOptions) (string, error)
}
