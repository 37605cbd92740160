package asr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// scriptedStatus 按顺序返回预设的状态
type scriptedStatus struct {
	statuses []*JobStatus
	errs     []error
	calls    int
}

func (s *scriptedStatus) GetStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	i := s.calls
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.statuses[i], nil
}

func newTestPoller(client StatusGetter, maxAttempts int) (*Poller, *[]time.Duration) {
	var waits []time.Duration
	p := NewPoller(client, 5*time.Second, maxAttempts)
	p.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return p, &waits
}

func doneStatus() *JobStatus {
	return &JobStatus{
		Status: StatusDone,
		Result: &JobResult{Transcription: Transcription{Utterances: []Utterance{{Text: "hi", Start: 0.1}}}},
	}
}

func TestPollUntilDone(t *testing.T) {
	client := &scriptedStatus{statuses: []*JobStatus{
		{Status: StatusQueued},
		{Status: StatusProcessing},
		doneStatus(),
	}}
	poller, waits := newTestPoller(client, 0)

	var seen []string
	poller.Callback = func(attempt int, status string) {
		assert.Equal(t, len(seen)+1, attempt)
		seen = append(seen, status)
	}

	result, err := poller.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Transcription.Utterances[0].Text)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []string{StatusQueued, StatusProcessing, StatusDone}, seen)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *waits)
}

func TestPollImmediateDone(t *testing.T) {
	client := &scriptedStatus{statuses: []*JobStatus{doneStatus()}}
	poller, waits := newTestPoller(client, 0)

	_, err := poller.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Empty(t, *waits)
}

func TestPollQueryErrorStops(t *testing.T) {
	queryErr := utils.NewTransportError("boom", 500, nil)
	client := &scriptedStatus{
		statuses: []*JobStatus{{Status: StatusQueued}, nil},
		errs:     []error{nil, queryErr},
	}
	poller, _ := newTestPoller(client, 0)

	_, err := poller.Poll(context.Background(), "job-1")
	assert.ErrorIs(t, err, queryErr)
	assert.Equal(t, 2, client.calls)
}

func TestPollProviderError(t *testing.T) {
	client := &scriptedStatus{statuses: []*JobStatus{{Status: StatusError, ErrorCode: 422}}}
	poller, _ := newTestPoller(client, 0)

	_, err := poller.Poll(context.Background(), "job-1")
	require.Error(t, err)
	assert.True(t, utils.IsTransportError(err))
}

func TestPollDoneWithoutResult(t *testing.T) {
	client := &scriptedStatus{statuses: []*JobStatus{{Status: StatusDone}}}
	poller, _ := newTestPoller(client, 0)

	_, err := poller.Poll(context.Background(), "job-1")
	assert.True(t, utils.IsTransportError(err))
}

func TestPollMaxAttempts(t *testing.T) {
	client := &scriptedStatus{statuses: []*JobStatus{{Status: StatusProcessing}}}
	poller, waits := newTestPoller(client, 3)

	_, err := poller.Poll(context.Background(), "job-1")
	assert.True(t, errors.Is(err, ErrPollExhausted))
	assert.Equal(t, 3, client.calls)
	assert.Len(t, *waits, 2)
}

func TestPollContextCancel(t *testing.T) {
	client := &scriptedStatus{statuses: []*JobStatus{{Status: StatusProcessing}}}
	poller, _ := newTestPoller(client, 0)

	ctx, cancel := context.WithCancel(context.Background())
	poller.Callback = func(attempt int, status string) {
		if attempt == 2 {
			cancel()
		}
	}

	_, err := poller.Poll(ctx, "job-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, client.calls)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestPollStateOf(t *testing.T) {
	assert.Equal(t, PollDone, PollStateOf(StatusDone))
	assert.Equal(t, PollPending, PollStateOf(StatusQueued))
	assert.Equal(t, PollPending, PollStateOf("anything"))
}
