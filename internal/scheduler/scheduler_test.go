package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// mockRunner scripts Status/Run responses and counts Run calls.
type mockRunner struct {
	mu        sync.Mutex
	status    *schema.RunState
	statusErr error
	runState  *schema.RunState
	runErr    error
	runCalls  int
}

func (m *mockRunner) Run(_ context.Context) (*schema.RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runCalls++
	if m.runErr != nil {
		return nil, m.runErr
	}
	if m.runState != nil {
		return m.runState, nil
	}
	return &schema.RunState{
		WorkflowID: "deploy",
		RunID:      "run-1",
		Status:     schema.RunStatusCompleted,
	}, nil
}

func (m *mockRunner) Status(_ context.Context) (*schema.RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	if m.status != nil {
		return m.status, nil
	}
	return &schema.RunState{
		WorkflowID: "deploy",
		Status:     schema.RunStatusNotStarted,
	}, nil
}

func (m *mockRunner) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runCalls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T, runner Runner) *Scheduler {
	t.Helper()
	sched, err := New(runner, Config{Cron: "* * * * *", Logger: testLogger()})
	require.NoError(t, err)
	return sched
}

func TestNew_ParsesCron(t *testing.T) {
	_, err := New(&mockRunner{}, Config{Cron: "0 * * * *", Logger: testLogger()})
	require.NoError(t, err)

	_, err = New(&mockRunner{}, Config{Cron: "*/15 2-4 * * 1", Logger: testLogger()})
	require.NoError(t, err)
}

func TestNew_RejectsBadCron(t *testing.T) {
	_, err := New(&mockRunner{}, Config{Cron: "not a cron", Logger: testLogger()})
	require.Error(t, err)

	lerr, ok := err.(*schema.LobsterError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, lerr.Code)
}

func TestNew_RejectsSecondsField(t *testing.T) {
	// Six fields are the optional-seconds format, which is not accepted.
	_, err := New(&mockRunner{}, Config{Cron: "0 0 * * * *", Logger: testLogger()})
	require.Error(t, err)
}

func TestNew_RequiresRunner(t *testing.T) {
	_, err := New(nil, Config{Cron: "* * * * *", Logger: testLogger()})
	require.Error(t, err)
}

func TestTick_RunsWhenDue(t *testing.T) {
	runner := &mockRunner{}
	sched := newTestScheduler(t, runner)

	// A zero nextRun counts as overdue.
	sched.tick(context.Background())

	assert.Equal(t, 1, runner.calls())
	assert.Equal(t, "success", sched.LastOutcome())
	assert.True(t, sched.NextRunAt().After(time.Now().UTC()))
}

func TestTick_SkipsWhenNotDue(t *testing.T) {
	runner := &mockRunner{}
	sched := newTestScheduler(t, runner)

	sched.stateMu.Lock()
	sched.nextRun = time.Now().UTC().Add(time.Hour)
	sched.stateMu.Unlock()

	sched.tick(context.Background())

	assert.Equal(t, 0, runner.calls())
	assert.Empty(t, sched.LastOutcome())
}

func TestTick_AdvancesSchedule(t *testing.T) {
	runner := &mockRunner{}
	sched := newTestScheduler(t, runner)

	sched.tick(context.Background())
	assert.Equal(t, 1, runner.calls())

	// The slot has been consumed, so an immediate second tick is a no-op.
	sched.tick(context.Background())
	assert.Equal(t, 1, runner.calls())
}

func TestTick_SkipsWhileAwaitingApproval(t *testing.T) {
	runner := &mockRunner{status: &schema.RunState{
		WorkflowID: "deploy",
		RunID:      "run-7",
		Status:     schema.RunStatusAwaitingApproval,
	}}
	sched := newTestScheduler(t, runner)

	sched.tick(context.Background())

	assert.Equal(t, 0, runner.calls())
	assert.Equal(t, "skipped", sched.LastOutcome())
	// The schedule still advances so the next slot re-checks the gate.
	assert.True(t, sched.NextRunAt().After(time.Now().UTC()))
}

func TestTick_RerunsAfterTerminalStatus(t *testing.T) {
	for _, status := range []schema.RunStatus{
		schema.RunStatusCompleted,
		schema.RunStatusFailed,
	} {
		runner := &mockRunner{status: &schema.RunState{
			WorkflowID: "deploy",
			Status:     status,
		}}
		sched := newTestScheduler(t, runner)

		sched.tick(context.Background())

		assert.Equal(t, 1, runner.calls(), "status %s", status)
		assert.Equal(t, "success", sched.LastOutcome(), "status %s", status)
	}
}

func TestTick_RecordsPausedRun(t *testing.T) {
	runner := &mockRunner{runState: &schema.RunState{
		WorkflowID: "deploy",
		RunID:      "run-3",
		Status:     schema.RunStatusAwaitingApproval,
	}}
	sched := newTestScheduler(t, runner)

	sched.tick(context.Background())

	assert.Equal(t, 1, runner.calls())
	assert.Equal(t, "paused", sched.LastOutcome())
}

func TestTick_RecordsFailedRun(t *testing.T) {
	runner := &mockRunner{runErr: assert.AnError}
	sched := newTestScheduler(t, runner)

	sched.tick(context.Background())

	assert.Equal(t, 1, runner.calls())
	assert.Equal(t, "error", sched.LastOutcome())
	assert.True(t, sched.NextRunAt().After(time.Now().UTC()))
}

func TestTick_StatusErrorSkipsRun(t *testing.T) {
	runner := &mockRunner{statusErr: assert.AnError}
	sched := newTestScheduler(t, runner)

	sched.tick(context.Background())

	assert.Equal(t, 0, runner.calls())
	assert.Equal(t, "error", sched.LastOutcome())
}

func TestTick_InflightSkips(t *testing.T) {
	runner := &mockRunner{}
	sched := newTestScheduler(t, runner)

	// Simulate an in-flight run.
	require.True(t, sched.tryAcquire())

	sched.tick(context.Background())
	assert.Equal(t, 0, runner.calls())

	// Release and tick again. The slot was not consumed, so it fires now.
	sched.release()
	sched.tick(context.Background())
	assert.Equal(t, 1, runner.calls())
}

func TestStartStop(t *testing.T) {
	runner := &mockRunner{}
	sched, err := New(runner, Config{
		Cron:         "* * * * *",
		TickInterval: 10 * time.Millisecond,
		Logger:       testLogger(),
	})
	require.NoError(t, err)

	assert.True(t, sched.NextRunAt().IsZero())

	require.NoError(t, sched.Start(context.Background()))
	assert.False(t, sched.NextRunAt().IsZero())

	err = sched.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	require.NoError(t, sched.Stop())

	// Stop again is a no-op.
	require.NoError(t, sched.Stop())
}

func TestStartStop_Restart(t *testing.T) {
	runner := &mockRunner{}
	sched, err := New(runner, Config{
		Cron:         "0 3 * * *",
		TickInterval: 10 * time.Millisecond,
		Logger:       testLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Stop())
	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Stop())
}
