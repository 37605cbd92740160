package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/internal/adapters"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/internal/controller"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/internal/ui"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/internal/watcher"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/asr"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/models"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/scanner"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// options 命令行参数
type options struct {
	configFile      string
	saveConfig      string
	envFile         string
	format          string
	sequence        string
	dropUnmatched   bool
	sidecar         string
	pollInterval    float64
	maxPollAttempts int
	exportSRT       bool
	watch           bool
	logLevel        string
	logFile         string
	noProgress      bool
}

func newRootCommand() *cobra.Command {
	return newRootCommandWithOptions(&options{})
}

func newRootCommandWithOptions(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "audio-transcriber <音频目录>",
		Short: "批量转写目录中的音频文件",
		Long: "扫描目录中的 mp3/wav/flac 文件，逐个上传到 Gladia 转写，\n" +
			"轮询完成后把文本和时间合并写入结果文件 (默认为同目录下的 data.json)。",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				_ = cmd.Usage()
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, opts, args[0])
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "配置文件路径 (.json 或 .toml)")
	flags.StringVar(&opts.saveConfig, "save-config", "", "把生效的配置保存到文件（不含API密钥）")
	flags.StringVar(&opts.envFile, "env-file", "", "环境变量文件，默认读取当前目录的 .env")
	flags.StringVar(&opts.format, "format", models.FormatUtterances, "结果格式 (utterances, words)")
	flags.StringVar(&opts.sequence, "sequence", models.SequenceAscending, "处理顺序 (ascending, interleaved)")
	flags.BoolVar(&opts.dropUnmatched, "drop-unmatched", false, "交错排序时丢弃不符合命名规则的文件")
	flags.StringVar(&opts.sidecar, "sidecar", "", "固定的结果文件路径，默认写入音频目录")
	flags.Float64Var(&opts.pollInterval, "poll-interval", 5, "轮询间隔（秒）")
	flags.IntVar(&opts.maxPollAttempts, "max-poll-attempts", 0, "最大轮询次数，0表示不限")
	flags.BoolVar(&opts.exportSRT, "srt", false, "同时导出SRT字幕")
	flags.BoolVar(&opts.watch, "watch", false, "处理完成后继续监听目录中新增的音频")
	flags.StringVar(&opts.logLevel, "log-level", utils.LogLevelNormal, "日志级别 (VERBOSE, INFO, WARN, ERROR)")
	flags.StringVar(&opts.logFile, "log-file", "", "日志文件路径")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "不显示进度条")

	return rootCmd
}

// loadConfig 依次应用默认值、配置文件、命令行参数和环境变量
func loadConfig(cmd *cobra.Command, opts *options) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if opts.configFile != "" {
		if err := config.LoadFromFile(opts.configFile); err != nil {
			return nil, utils.NewInputError(fmt.Sprintf("加载配置文件 %s 失败", opts.configFile), err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		config.OutputFormat = opts.format
	}
	if flags.Changed("sequence") {
		config.Sequence = opts.sequence
	}
	if flags.Changed("drop-unmatched") {
		config.DropUnmatched = opts.dropUnmatched
	}
	if flags.Changed("sidecar") {
		config.SidecarPath = opts.sidecar
	}
	if flags.Changed("poll-interval") {
		config.PollInterval = opts.pollInterval
	}
	if flags.Changed("max-poll-attempts") {
		config.MaxPollAttempts = opts.maxPollAttempts
	}
	if flags.Changed("srt") {
		config.ExportSRT = opts.exportSRT
	}
	if flags.Changed("watch") {
		config.WatchMode = opts.watch
	}
	if flags.Changed("log-level") {
		config.LogLevel = opts.logLevel
	}
	if flags.Changed("log-file") {
		config.LogFile = opts.logFile
	}
	if opts.noProgress {
		config.ShowProgress = false
	}

	if err := config.LoadEnv(opts.envFile); err != nil {
		return nil, utils.NewInputError("加载环境变量失败", err)
	}

	if err := config.Validate(); err != nil {
		return nil, utils.NewInputError("配置无效", err)
	}
	return config, nil
}

func runTranscribe(cmd *cobra.Command, opts *options, dir string) error {
	config, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	terminal := ui.NewTerminalManager(os.Stdout)
	if err := utils.InitLoggerWithConsole(config.LogLevel, config.LogFile, terminal); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	printWelcome()
	config.PrintConfig()

	if opts.saveConfig != "" {
		if err := config.SaveToFile(opts.saveConfig); err != nil {
			return fmt.Errorf("保存配置失败: %w", err)
		}
		utils.Info("配置已保存到 %s", opts.saveConfig)
	}

	client, err := asr.NewGladiaClient(asr.ClientConfig{
		BaseURL: config.BaseURL,
		APIKey:  config.APIKey,
		Timeout: time.Duration(config.RequestTimeout) * time.Second,
	})
	if err != nil {
		return err
	}

	bc, err := controller.NewBatchController(cmd.Context(), config, client, terminal)
	if err != nil {
		return err
	}
	defer bc.Cleanup()
	bc.SetupSignalHandlers()

	utils.WithField("run_id", bc.RunID).Infof("开始处理目录: %s", dir)

	summary, err := bc.Run(dir)
	switch {
	case errors.Is(err, utils.ErrEmptyBatch):
		color.Yellow("目录 %s 中没有找到音频文件 (支持 .mp3 .wav .flac)", dir)
	case err != nil:
		bc.PrintSummary(summary)
		return err
	default:
		bc.PrintSummary(summary)
	}

	if !config.WatchMode {
		return nil
	}
	return startWatchMode(bc, dir)
}

// startWatchMode 监听目录直到收到中断信号
func startWatchMode(bc *controller.BatchController, dir string) error {
	stop, err := watcher.StartAudioFolderMonitoring(
		dir,
		scanner.NewAudioScanner().AudioExtensions,
		adapters.NewBatchControllerAdapter(bc),
		watcher.DefaultDebounce,
	)
	if err != nil {
		return err
	}
	bc.AddCleanup(stop)

	color.Cyan("正在监听 %s 中新增的音频文件，按Ctrl+C退出...", dir)
	<-bc.Context().Done()
	return nil
}

func printWelcome() {
	fmt.Println()
	color.Cyan("================================")
	color.Cyan("   音频批量转写工具 (Gladia)    ")
	color.Cyan("================================")
	fmt.Println()
}
