package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/shodan-notifier/internal/logging"
	"github.com/anstrom/shodan-notifier/internal/notifier"
)

func TestNewValidation(t *testing.T) {
	run := func(context.Context) (*notifier.RunResult, error) { return nil, nil }

	_, err := New("not a cron", run, logging.NewDiscard())
	assert.Error(t, err)

	_, err = New("0 9 * * *", nil, logging.NewDiscard())
	assert.Error(t, err)

	s, err := New("0 9 * * *", run, nil)
	require.NoError(t, err)
	assert.Equal(t, "0 9 * * *", s.Status().Schedule)
}

func TestRunNowRecordsResult(t *testing.T) {
	want := &notifier.RunResult{RunID: "run-1", Rows: 3}
	s, err := New("@every 1h", func(context.Context) (*notifier.RunResult, error) {
		return want, nil
	}, logging.NewDiscard())
	require.NoError(t, err)

	got, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)

	st := s.Status()
	assert.Equal(t, 1, st.Runs)
	assert.Same(t, want, st.LastResult)
	assert.Empty(t, st.LastError)
	assert.False(t, st.LastRun.IsZero())
	assert.False(t, st.Executing)
}

func TestRunNowKeepsLastResultOnFailure(t *testing.T) {
	calls := 0
	first := &notifier.RunResult{RunID: "ok"}
	s, err := New("@every 1h", func(context.Context) (*notifier.RunResult, error) {
		calls++
		if calls == 1 {
			return first, nil
		}
		return nil, errors.New("snapshot corrupt")
	}, logging.NewDiscard())
	require.NoError(t, err)

	_, _ = s.RunNow(context.Background())
	_, err = s.RunNow(context.Background())
	require.Error(t, err)

	st := s.Status()
	assert.Equal(t, 2, st.Runs)
	assert.Same(t, first, st.LastResult)
	assert.Equal(t, "snapshot corrupt", st.LastError)
}

func TestRunNowRejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	s, err := New("@every 1h", func(context.Context) (*notifier.RunResult, error) {
		close(entered)
		<-release
		return &notifier.RunResult{}, nil
	}, logging.NewDiscard())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunNow(context.Background())
	}()
	<-entered

	assert.True(t, s.Status().Executing)
	_, err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	<-done
	assert.Equal(t, 1, s.Status().Runs)
}

func TestStartStop(t *testing.T) {
	var runs atomic.Int32
	s, err := New("@every 1s", func(context.Context) (*notifier.RunResult, error) {
		runs.Add(1)
		return &notifier.RunResult{}, nil
	}, logging.NewDiscard())
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	st := s.Status()
	assert.True(t, st.Started)
	assert.False(t, st.NextRun.IsZero())

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)

	assert.False(t, s.Status().Started)
	// second stop is a no-op
	s.Stop(ctx)
}

func TestStopCancelsRun(t *testing.T) {
	entered := make(chan struct{})
	s, err := New("@every 1s", func(ctx context.Context) (*notifier.RunResult, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}, logging.NewDiscard())
	require.NoError(t, err)
	require.NoError(t, s.Start())

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)

	assert.Eventually(t, func() bool { return !s.Status().Executing }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, context.Canceled.Error(), s.Status().LastError)
}
