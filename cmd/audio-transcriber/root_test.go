package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/models"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	err := cmd.Execute()
	return buf.String(), err
}

func TestMissingArgumentPrintsUsage(t *testing.T) {
	out, err := execute(t)
	assert.Error(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "audio-transcriber <音频目录>")

	_, err = execute(t, "a", "b")
	assert.Error(t, err)
}

func TestMissingDirectoryIsInputError(t *testing.T) {
	t.Setenv(models.EnvAPIKey, "test-key")

	_, err := execute(t, "--no-progress", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, utils.IsInputError(err))
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv(models.EnvAPIKey, "")

	_, err := execute(t, "--env-file", filepath.Join(t.TempDir(), "none.env"), t.TempDir())
	require.Error(t, err)
	assert.True(t, utils.IsInputError(err))
}

func TestEmptyDirectoryIsNotAFailure(t *testing.T) {
	t.Setenv(models.EnvAPIKey, "test-key")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0644))

	_, err := execute(t, "--no-progress", dir)
	assert.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, models.DefaultSidecarName))
}

func TestSaveConfig(t *testing.T) {
	t.Setenv(models.EnvAPIKey, "secret-key")
	saved := filepath.Join(t.TempDir(), "saved.json")

	_, err := execute(t, "--no-progress", "--format", "words", "--save-config", saved, t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"output_format": "words"`)
	assert.NotContains(t, string(data), "secret-key")
}

func TestLoadConfigPrecedence(t *testing.T) {
	t.Setenv(models.EnvAPIKey, "env-key")
	t.Setenv(models.EnvBaseURL, "http://localhost:9999/v2")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
output_format = "words"
sequence = "interleaved"
poll_interval = 10.0
`), 0644))

	opts := &options{}
	cmd := newRootCommandWithOptions(opts)
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", configPath,
		"--sequence", "ascending",
		"--sidecar", "/tmp/results.json",
		"--max-poll-attempts", "3",
		"--no-progress",
	}))

	config, err := loadConfig(cmd, opts)
	require.NoError(t, err)

	// 配置文件中的值
	assert.Equal(t, models.FormatWords, config.OutputFormat)
	assert.Equal(t, 10.0, config.PollInterval)
	// 命令行覆盖配置文件
	assert.Equal(t, models.SequenceAscending, config.Sequence)
	assert.Equal(t, "/tmp/results.json", config.SidecarPath)
	assert.Equal(t, 3, config.MaxPollAttempts)
	assert.False(t, config.ShowProgress)
	// 环境变量
	assert.Equal(t, "env-key", config.APIKey)
	assert.Equal(t, "http://localhost:9999/v2", config.BaseURL)
}

func TestLoadConfigRejectsInvalidFlags(t *testing.T) {
	t.Setenv(models.EnvAPIKey, "env-key")

	opts := &options{}
	cmd := newRootCommandWithOptions(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--format", "csv"}))

	_, err := loadConfig(cmd, opts)
	assert.True(t, utils.IsInputError(err))
}
