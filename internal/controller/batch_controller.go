package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/internal/ui"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/asr"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/export"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/models"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/scanner"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/sequencer"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

const batchBarID = "batch"

// FileResult 单个文件的处理结果
type FileResult struct {
	Path     string
	Name     string // 服务端返回的文件名，结果文件中的键
	JobID    string
	Sidecar  string
	SRTPath  string
	Entries  int
	Success  bool
	Error    error
	Duration time.Duration
}

// Summary 一次批处理的汇总
type Summary struct {
	RunID     string
	Directory string
	StartTime time.Time
	Elapsed   time.Duration
	Results   []FileResult
	Succeeded int
	Failed    int
}

// SummaryRows 转换为汇总表的行
func (s *Summary) SummaryRows() []ui.SummaryRow {
	rows := make([]ui.SummaryRow, 0, len(s.Results))
	for _, r := range s.Results {
		row := ui.SummaryRow{
			File:     filepath.Base(r.Path),
			Success:  r.Success,
			Entries:  r.Entries,
			Duration: utils.FormatTimeDuration(r.Duration.Seconds()),
		}
		if r.Error != nil {
			row.Message = r.Error.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// BatchController 协调扫描、排序、转写和结果写入
type BatchController struct {
	Config *models.Config

	Client       asr.Transcriber
	Poller       *asr.Poller
	Scanner      *scanner.AudioScanner
	Sequencer    *sequencer.Sequencer
	ErrorHandler *utils.ErrorHandler

	Terminal        *ui.TerminalManager
	ProgressManager *ui.ProgressManager

	RunID  string
	format export.OutputFormat

	// 上下文控制
	ctx        context.Context
	cancelFunc context.CancelFunc

	cleanup   []func()
	cleanupMu sync.Mutex

	// 同一时间只处理一个文件，保证结果文件只有一个写入者
	mu sync.Mutex
}

// NewBatchController 创建批处理控制器
func NewBatchController(parent context.Context, cfg *models.Config, client asr.Transcriber, terminal *ui.TerminalManager) (*BatchController, error) {
	if cfg == nil {
		cfg = models.NewDefaultConfig()
	}
	if client == nil {
		return nil, fmt.Errorf("未提供转写客户端")
	}

	format, err := export.ParseOutputFormat(cfg.OutputFormat)
	if err != nil {
		return nil, utils.NewInputError(err.Error(), nil)
	}

	if terminal == nil {
		terminal = ui.NewTerminalManager(os.Stdout)
	}

	ctx, cancel := context.WithCancel(parent)
	bc := &BatchController{
		Config:          cfg,
		Client:          client,
		Poller:          asr.NewPoller(client, time.Duration(cfg.PollInterval*float64(time.Second)), cfg.MaxPollAttempts),
		Scanner:         scanner.NewAudioScanner(),
		Sequencer:       sequencer.NewSequencer(cfg.Sequence, cfg.DropUnmatched),
		ErrorHandler:    utils.NewErrorHandler(cfg.MaxRetries, cfg.RetryDelay),
		Terminal:        terminal,
		ProgressManager: ui.NewProgressManager(terminal, cfg.ShowProgress),
		RunID:           uuid.NewString(),
		format:          format,
		ctx:             ctx,
		cancelFunc:      cancel,
	}
	bc.addCleanup(cancel)

	return bc, nil
}

// Context 控制器的上下文，中断信号会取消它
func (bc *BatchController) Context() context.Context {
	return bc.ctx
}

// Stop 取消正在进行的处理
func (bc *BatchController) Stop() {
	bc.cancelFunc()
}

// SetupSignalHandlers 收到SIGINT/SIGTERM时取消上下文
func (bc *BatchController) SetupSignalHandlers() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-c:
			utils.Info("接收到中断信号，正在停止...")
			bc.cancelFunc()
		case <-bc.ctx.Done():
		}
		signal.Stop(c)
	}()
}

// Run 处理目录中的所有音频文件
// 目录无效返回输入错误；没有音频文件返回 utils.ErrEmptyBatch，此时不会发起请求或写入文件
func (bc *BatchController) Run(dir string) (*Summary, error) {
	summary := &Summary{
		RunID:     bc.RunID,
		Directory: dir,
		StartTime: time.Now(),
	}

	files, err := bc.Scanner.ScanDirectory(dir)
	if err != nil {
		return summary, err
	}
	if len(files) == 0 {
		utils.Warn("目录 %s 中没有找到音频文件", dir)
		return summary, utils.ErrEmptyBatch
	}

	ordered := bc.Sequencer.Order(files)
	bc.listFiles(ordered)

	bar := bc.ProgressManager.CreateProgressBar(batchBarID, len(ordered), "转写进度", "准备中...")

	for i, file := range ordered {
		if bc.ctx.Err() != nil {
			utils.Warn("处理已取消，剩余 %d 个文件未处理", len(ordered)-i)
			break
		}

		bc.Terminal.PrintMsg("\n[%d/%d] 开始处理: %s", i+1, len(ordered), file.Name)
		result := bc.ProcessFile(file.Path)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.Succeeded++
			bc.Terminal.PrintMsg("%s", color.GreenString("[%d/%d] 处理成功: %s (%d 条, 用时 %s)",
				i+1, len(ordered), file.Name, result.Entries, utils.FormatTimeDuration(result.Duration.Seconds())))
		} else {
			summary.Failed++
			bc.Terminal.PrintMsg("%s", color.RedString("[%d/%d] 处理失败: %s - %v", i+1, len(ordered), file.Name, result.Error))
		}

		if bar != nil {
			bc.ProgressManager.IncrementProgressBar(batchBarID, file.Name)
		}
	}

	bc.ProgressManager.CompleteProgressBar(batchBarID, "已完成")
	summary.Elapsed = time.Since(summary.StartTime)

	utils.WithFields(logrus.Fields{
		"run_id":    bc.RunID,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Infof("批处理完成，耗时 %s", utils.FormatTimeDuration(summary.Elapsed.Seconds()))

	return summary, bc.ctx.Err()
}

// listFiles 按处理顺序列出文件
func (bc *BatchController) listFiles(files []scanner.AudioFile) {
	var total int64
	for _, file := range files {
		total += file.Size
	}

	utils.Info("找到 %d 个音频文件，共 %s，处理顺序 (%s):", len(files), humanize.Bytes(uint64(total)), bc.Config.Sequence)
	for i, file := range files {
		utils.Info("  %2d. %s (%s)", i+1, file.Name, humanize.Bytes(uint64(file.Size)))
	}
}

// ProcessFile 对单个文件执行上传、提交、轮询、提取和写入
// 失败只影响当前文件，错误记录在返回结果中
func (bc *BatchController) ProcessFile(path string) FileResult {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	start := time.Now()
	result := FileResult{Path: path, Name: filepath.Base(path)}

	err := bc.processFile(bc.ctx, &result)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		utils.WithFields(logrus.Fields{
			"run_id": bc.RunID,
			"file":   result.Name,
			"job_id": result.JobID,
		}).Errorf("处理失败: %v", err)
		return result
	}

	result.Success = true
	return result
}

func (bc *BatchController) processFile(ctx context.Context, result *FileResult) error {
	log := utils.WithFields(logrus.Fields{"run_id": bc.RunID, "file": result.Name})

	source, err := asr.LoadAudio(result.Path)
	if err != nil {
		bc.ErrorHandler.Record("读取音频", err)
		return utils.NewInputError("读取音频失败", err)
	}

	var upload *asr.UploadResult
	err = bc.ErrorHandler.Retry(ctx, "上传音频", func() error {
		var uploadErr error
		upload, uploadErr = bc.Client.Upload(ctx, source)
		return uploadErr
	})
	if err != nil {
		return err
	}

	if upload.AudioMetadata.Filename != "" {
		result.Name = upload.AudioMetadata.Filename
	}
	log = log.WithField("file", result.Name)
	log.Debugf("上传完成: %s", upload.AudioURL)

	var jobID string
	err = bc.ErrorHandler.Retry(ctx, "提交转写任务", func() error {
		var submitErr error
		jobID, submitErr = bc.Client.SubmitJob(ctx, upload.AudioURL, asr.JobOptions{Diarization: bc.Config.Diarization})
		return submitErr
	})
	if err != nil {
		return err
	}

	job := asr.TranscriptionJob{
		ID:           jobID,
		AudioURL:     upload.AudioURL,
		FilePath:     result.Path,
		ResolvedName: result.Name,
	}
	result.JobID = job.ID
	log = log.WithField("job_id", job.ID)
	log.Info("转写任务已提交，等待结果...")

	poller := *bc.Poller
	poller.Callback = func(attempt int, status string) {
		log.Debugf("第 %d 次查询，状态: %s", attempt, status)
		bc.ProgressManager.SetStatus(batchBarID, fmt.Sprintf("%s: %s (%d)", job.ResolvedName, status, attempt))
	}

	jobResult, err := poller.Poll(ctx, job.ID)
	if err != nil {
		bc.ErrorHandler.Record("轮询任务状态", err)
		return err
	}

	transcript, err := export.Extract(jobResult, bc.format)
	if err != nil {
		bc.ErrorHandler.Record("提取结果", err)
		return err
	}
	result.Entries = transcript.Len()

	// 取消后不再写入
	if err := ctx.Err(); err != nil {
		return err
	}

	result.Sidecar = bc.Config.SidecarFor(filepath.Dir(result.Path))
	report, err := export.MergeFile(ctx, result.Sidecar, export.Store{job.ResolvedName: transcript})
	if err != nil {
		bc.ErrorHandler.Record("写入结果文件", err)
		return err
	}
	if report.LoadErr != nil {
		bc.ErrorHandler.Record("读取结果文件", report.LoadErr)
		log.Warnf("已有结果文件无法解析，已按空内容重写: %v", report.LoadErr)
	}
	log.Infof("结果已写入 %s (共 %d 个文件)", report.Path, report.Entries)

	if bc.Config.ExportSRT {
		exporter := export.NewSRTExporter(filepath.Dir(result.Sidecar))
		srtPath, err := exporter.ExportSRT(jobResult.Transcription.Utterances, job.ResolvedName)
		if err != nil {
			bc.ErrorHandler.Record("导出SRT", err)
			log.Warnf("导出SRT失败: %v", err)
		} else {
			result.SRTPath = srtPath
		}
	}

	return nil
}

// PrintSummary 打印汇总表和错误统计
func (bc *BatchController) PrintSummary(summary *Summary) {
	if summary == nil || len(summary.Results) == 0 {
		return
	}

	bc.Terminal.PrintMsg("\n%s", ui.RenderSummary(summary.SummaryRows()))
	bc.Terminal.PrintMsg("总用时: %s", utils.FormatTimeDuration(summary.Elapsed.Seconds()))
	if summary.Failed > 0 {
		bc.ErrorHandler.PrintErrorStats()
	}
}

// IsCancelled 判断错误是否由取消引起
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// 添加清理函数
func (bc *BatchController) addCleanup(cleanup func()) {
	bc.cleanupMu.Lock()
	defer bc.cleanupMu.Unlock()
	bc.cleanup = append(bc.cleanup, cleanup)
}

// AddCleanup 注册退出时执行的清理函数
func (bc *BatchController) AddCleanup(cleanup func()) {
	bc.addCleanup(cleanup)
}

// Cleanup 逆序执行所有清理函数
func (bc *BatchController) Cleanup() {
	bc.cleanupMu.Lock()
	cleanup := bc.cleanup
	bc.cleanup = nil
	bc.cleanupMu.Unlock()

	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}

	bc.ProgressManager.CloseAll("已完成")
}
