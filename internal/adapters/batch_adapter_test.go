package adapters

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/internal/controller"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/internal/ui"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/asr"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/export"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/models"
)

// offlineTranscriber 所有请求都失败
type offlineTranscriber struct{}

func (offlineTranscriber) Upload(ctx context.Context, audio *asr.AudioSource) (*asr.UploadResult, error) {
	return nil, errors.New("offline")
}

func (offlineTranscriber) SubmitJob(ctx context.Context, audioURL string, opts asr.JobOptions) (string, error) {
	return "", errors.New("offline")
}

func (offlineTranscriber) GetStatus(ctx context.Context, jobID string) (*asr.JobStatus, error) {
	return nil, errors.New("offline")
}

func newAdapter(t *testing.T) *BatchControllerAdapter {
	t.Helper()
	bc, err := controller.NewBatchController(context.Background(), models.NewDefaultConfig(), offlineTranscriber{}, ui.NewTerminalManager(io.Discard))
	require.NoError(t, err)
	t.Cleanup(bc.Cleanup)
	return NewBatchControllerAdapter(bc)
}

func TestIsRecognizedFile(t *testing.T) {
	dir := t.TempDir()
	adapter := newAdapter(t)

	audio := filepath.Join(dir, "a.mp3")
	assert.False(t, adapter.IsRecognizedFile(audio))

	require.NoError(t, export.SaveStore(filepath.Join(dir, models.DefaultSidecarName), export.Store{
		"a.mp3": {Format: export.FormatUtterances, Utterances: &export.UtteranceResult{}},
	}))
	assert.True(t, adapter.IsRecognizedFile(audio))
	assert.False(t, adapter.IsRecognizedFile(filepath.Join(dir, "b.mp3")))
}

func TestProcessFileFailure(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("x"), 0644))

	adapter := newAdapter(t)
	assert.False(t, adapter.ProcessFile(audio))
	assert.NoFileExists(t, filepath.Join(dir, models.DefaultSidecarName))
}
