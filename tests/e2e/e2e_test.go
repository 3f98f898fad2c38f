package e2e

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CCAgentOrg/nanobot-skills/internal/actions"
	"github.com/CCAgentOrg/nanobot-skills/internal/engine"
	"github.com/CCAgentOrg/nanobot-skills/internal/store"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// --- Test harness ---

type harness struct {
	t     *testing.T
	dir   string
	store store.Store
	reg   *actions.Registry
	out   *bytes.Buffer
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	st, err := store.NewFileStore(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	out := &bytes.Buffer{}
	reg := actions.NewRegistry()
	require.NoError(t, actions.RegisterBuiltins(reg, actions.BuiltinConfig{Out: out}))

	return &harness{t: t, dir: dir, store: st, reg: reg, out: out}
}

// orchestrator builds a fresh Orchestrator over the shared store, as if
// a new process picked up the workflow.
func (h *harness) orchestrator(def *schema.WorkflowDefinition) *engine.Orchestrator {
	h.t.Helper()
	orc, err := engine.New(def, engine.Config{Store: h.store, Registry: h.reg, Logger: testLogger()})
	require.NoError(h.t, err)
	return orc
}

func (h *harness) gate(workflowID, gateID string) *store.ApprovalGate {
	return store.NewGate(schema.GateSpec{ID: gateID}, workflowID, h.store, testLogger())
}

// markerAction records every invocation, so re-execution of an already
// completed step is detectable.
type markerAction struct {
	name string

	mu    sync.Mutex
	calls []string
}

func (a *markerAction) Name() string     { return a.name }
func (a *markerAction) Describe() string { return "records invocations for tests" }

func (a *markerAction) Execute(_ context.Context, params map[string]any) (actions.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	marker, _ := params["marker"].(string)
	a.calls = append(a.calls, marker)
	return actions.Result{"status": actions.StatusSuccess, "marker": marker}, nil
}

func (a *markerAction) invocations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

// gatedDeploy is the canonical gated workflow: a build step, a release
// step guarded by an approval gate, and an announcement step.
func gatedDeploy() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		ID: "deploy",
		Steps: []schema.Step{
			{ID: "build", Action: "echo", Params: map[string]any{"message": "building"}},
			{
				ID: "release", Action: "echo", Params: map[string]any{"message": "releasing"},
				Gate: &schema.GateSpec{ID: "release-approval", Name: "Release approval"},
			},
			{ID: "announce", Action: "echo", Params: map[string]any{"message": "released"}},
		},
	}
}

// --- E2E scenarios ---

// 1. A linear workflow runs to completion and persists its final state.
func TestLinearWorkflowCompletes(t *testing.T) {
	h := newHarness(t)
	def := &schema.WorkflowDefinition{
		ID: "greet",
		Steps: []schema.Step{
			{ID: "one", Action: "echo", Params: map[string]any{"message": "first"}},
			{ID: "two", Action: "echo", Params: map[string]any{"message": "second"}},
			{ID: "three", Action: "echo", Params: map[string]any{"message": "third"}},
		},
	}

	state, err := h.orchestrator(def).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, schema.RunStatusCompleted, state.Status)
	assert.Equal(t, 3, state.CurrentStep)
	require.Len(t, state.CompletedSteps, 3)
	assert.Equal(t, "one", state.CompletedSteps[0].StepID)
	assert.NotNil(t, state.CompletedAt)
	assert.Equal(t, "first\nsecond\nthird\n", h.out.String())

	persisted, err := h.store.LoadRun(context.Background(), "greet")
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, schema.RunStatusCompleted, persisted.Status)
	assert.Equal(t, state.RunID, persisted.RunID)
}

// 2. A pending gate pauses the run before its step executes.
func TestRunPausesAtGate(t *testing.T) {
	h := newHarness(t)

	state, err := h.orchestrator(gatedDeploy()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, schema.RunStatusAwaitingApproval, state.Status)
	assert.Equal(t, 1, state.CurrentStep)
	require.Len(t, state.CompletedSteps, 1)
	assert.NotNil(t, state.PausedAt)
	assert.Equal(t, schema.GateStatusPending, state.GateStates["release-approval"])
	assert.NotContains(t, h.out.String(), "releasing")

	// First sight of the gate stamps the owning step on the record.
	gs, err := h.gate("deploy", "release-approval").State(context.Background())
	require.NoError(t, err)
	assert.True(t, gs.Seen())
	assert.Equal(t, "release", gs.StepID)
	assert.Equal(t, schema.GateStatusPending, gs.Status)
}

// 3. Approve out of band, resume in a fresh orchestrator, run completes.
func TestApproveThenResumeCompletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orchestrator(gatedDeploy()).Run(ctx)
	require.NoError(t, err)

	gs, err := h.gate("deploy", "release-approval").Approve(ctx, "alice", "ship it")
	require.NoError(t, err)
	assert.Equal(t, schema.GateStatusApproved, gs.Status)
	assert.Equal(t, "alice", gs.ApprovedBy)
	assert.Equal(t, "ship it", gs.Reason)

	state, err := h.orchestrator(gatedDeploy()).Resume(ctx)
	require.NoError(t, err)

	assert.Equal(t, schema.RunStatusCompleted, state.Status)
	require.Len(t, state.CompletedSteps, 3)
	assert.Equal(t, schema.GateStatusApproved, state.GateStates["release-approval"])
	assert.Nil(t, state.PausedAt)

	// Each step ran exactly once across run and resume.
	assert.Equal(t, 1, strings.Count(h.out.String(), "building"))
	assert.Equal(t, 1, strings.Count(h.out.String(), "releasing"))
	assert.Equal(t, 1, strings.Count(h.out.String(), "released"))
}

// 4. A rejected gate keeps the run paused and must be reset before a new
// decision is accepted.
func TestRejectedGateBlocksResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orchestrator(gatedDeploy()).Run(ctx)
	require.NoError(t, err)

	_, err = h.gate("deploy", "release-approval").Reject(ctx, "not during freeze")
	require.NoError(t, err)

	state, err := h.orchestrator(gatedDeploy()).Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusAwaitingApproval, state.Status)
	assert.Equal(t, schema.GateStatusRejected, state.GateStates["release-approval"])

	// Approving a rejected gate is refused until the gate is reset.
	_, err = h.gate("deploy", "release-approval").Approve(ctx, "alice", "")
	require.Error(t, err)
	lerr, ok := err.(*schema.LobsterError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeGate, lerr.Code)

	require.NoError(t, h.gate("deploy", "release-approval").Reset(ctx))

	// After the reset the gate is unseen again, so the next resume
	// pauses on it once more before a fresh approval lets it through.
	state, err = h.orchestrator(gatedDeploy()).Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusAwaitingApproval, state.Status)

	_, err = h.gate("deploy", "release-approval").Approve(ctx, "alice", "freeze lifted")
	require.NoError(t, err)

	state, err = h.orchestrator(gatedDeploy()).Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, state.Status)
}

// 5. Resetting the run deletes run state but not gate records, so the
// next full run passes the still-approved gate without pausing.
func TestApprovalOutlivesRunReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orchestrator(gatedDeploy()).Run(ctx)
	require.NoError(t, err)
	_, err = h.gate("deploy", "release-approval").Approve(ctx, "alice", "")
	require.NoError(t, err)
	state, err := h.orchestrator(gatedDeploy()).Resume(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.RunStatusCompleted, state.Status)

	require.NoError(t, h.orchestrator(gatedDeploy()).Reset(ctx))
	deleted, err := h.store.LoadRun(ctx, "deploy")
	require.NoError(t, err)
	assert.Nil(t, deleted)

	state, err = h.orchestrator(gatedDeploy()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, state.Status)
	require.Len(t, state.CompletedSteps, 3)
}

// 6. An approval recorded before the workflow ever ran does not skip the
// first pause: a gate always pauses on first sight.
func TestPreApprovedGateStillPausesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.gate("deploy", "release-approval").Approve(ctx, "alice", "pre-cleared")
	require.NoError(t, err)

	state, err := h.orchestrator(gatedDeploy()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusAwaitingApproval, state.Status)
	assert.Equal(t, schema.GateStatusApproved, state.GateStates["release-approval"])

	state, err = h.orchestrator(gatedDeploy()).Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, state.Status)
}

// 7. An unknown action fails the run at its step; once the action is
// registered, resume picks up there without repeating completed steps.
func TestUnknownActionFailsThenResumes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	marker := &markerAction{name: "marker"}
	require.NoError(t, h.reg.Register(marker))

	def := &schema.WorkflowDefinition{
		ID: "fleet",
		Steps: []schema.Step{
			{ID: "prepare", Action: "marker", Params: map[string]any{"marker": "prepare"}},
			{ID: "provision", Action: "provision_fleet", Params: map[string]any{"marker": "provision"}},
			{ID: "verify", Action: "marker", Params: map[string]any{"marker": "verify"}},
		},
	}

	state, err := h.orchestrator(def).Run(ctx)
	require.Error(t, err)
	lerr, ok := err.(*schema.LobsterError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeUnknownAction, lerr.Code)
	assert.Equal(t, "provision", lerr.StepID)

	assert.Equal(t, schema.RunStatusFailed, state.Status)
	assert.Equal(t, 1, state.CurrentStep)
	assert.Contains(t, state.Error, "provision_fleet")
	assert.NotNil(t, state.FailedAt)

	require.NoError(t, h.reg.Register(&markerAction{name: "provision_fleet"}))

	state, err = h.orchestrator(def).Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, state.Status)
	assert.Empty(t, state.Error)
	assert.Nil(t, state.FailedAt)
	require.Len(t, state.CompletedSteps, 3)
	assert.Equal(t, []string{"prepare", "verify"}, marker.invocations())
}

// 8. Variables flow from the definition through set_variable, eval and
// jq bindings into later step parameters.
func TestVariableFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	def := &schema.WorkflowDefinition{
		ID:        "release-notes",
		Variables: map[string]any{"product": "lobster"},
		Steps: []schema.Step{
			{ID: "greet", Action: "echo", Params: map[string]any{"message": "${product}"}},
			{ID: "pick", Action: "set_variable", Params: map[string]any{"name": "version", "value": "1.2.3"}},
			{ID: "tag", Action: "eval", Params: map[string]any{
				"expression": `version + "-rc1"`,
				"env":        map[string]any{"version": "${version}"},
				"assign_to":  "tag",
			}},
			{ID: "shape", Action: "jq", Params: map[string]any{
				"program":   ".tag",
				"input":     map[string]any{"tag": "${tag}"},
				"assign_to": "release_tag",
			}},
			{ID: "check", Action: "assert", Params: map[string]any{
				"condition": `vars.tag == "1.2.3-rc1"`,
				"env":       map[string]any{"tag": "${release_tag}"},
			}},
		},
	}

	state, err := h.orchestrator(def).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, schema.RunStatusCompleted, state.Status)
	assert.Equal(t, "lobster\n", h.out.String())
	assert.Equal(t, "1.2.3", state.Variables["version"])
	assert.Equal(t, "1.2.3-rc1", state.Variables["tag"])
	assert.Equal(t, "1.2.3-rc1", state.Variables["release_tag"])

	require.Len(t, state.CompletedSteps, 5)
	assert.Equal(t, "1.2.3-rc1", state.CompletedSteps[2].Result["value"])
}

// 9. A workflow without steps completes immediately.
func TestEmptyWorkflowCompletes(t *testing.T) {
	h := newHarness(t)

	state, err := h.orchestrator(&schema.WorkflowDefinition{ID: "noop"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, schema.RunStatusCompleted, state.Status)
	assert.Equal(t, 0, state.CurrentStep)
	assert.Empty(t, state.CompletedSteps)
	assert.NotNil(t, state.CompletedAt)
}

// 10. A non-zero shell exit is recorded step data, not a run fault.
func TestShellExitRecordedNotFatal(t *testing.T) {
	h := newHarness(t)

	def := &schema.WorkflowDefinition{
		ID: "build-check",
		Steps: []schema.Step{
			{ID: "ok", Action: "shell", Params: map[string]any{"command": "printf hello"}},
			{ID: "broken", Action: "shell", Params: map[string]any{"command": "exit 3"}},
			{ID: "after", Action: "echo", Params: map[string]any{"message": "still here"}},
		},
	}

	state, err := h.orchestrator(def).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, schema.RunStatusCompleted, state.Status)
	require.Len(t, state.CompletedSteps, 3)
	assert.Equal(t, "success", state.CompletedSteps[0].Result["status"])
	assert.Equal(t, "hello", state.CompletedSteps[0].Result["output"])
	assert.Equal(t, "failed", state.CompletedSteps[1].Result["status"])
	assert.Equal(t, 3, state.CompletedSteps[1].Result["return_code"])
	assert.Contains(t, h.out.String(), "still here")
}

// 11. A failed assertion stops the run with the step's message.
func TestAssertionFailureFailsRun(t *testing.T) {
	h := newHarness(t)

	def := &schema.WorkflowDefinition{
		ID: "quality",
		Steps: []schema.Step{
			{ID: "coverage", Action: "assert", Params: map[string]any{
				"condition": "vars.coverage >= 80.0",
				"env":       map[string]any{"coverage": 62.5},
				"message":   "coverage below threshold",
			}},
		},
	}

	state, err := h.orchestrator(def).Run(context.Background())
	require.Error(t, err)
	lerr, ok := err.(*schema.LobsterError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeAssertionFailed, lerr.Code)
	assert.Equal(t, "coverage", lerr.StepID)

	assert.Equal(t, schema.RunStatusFailed, state.Status)
	assert.Contains(t, state.Error, "coverage below threshold")
}

// 12. Resuming a completed run is a no-op returning the final state.
func TestResumeCompletedRunIsNoOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	def := &schema.WorkflowDefinition{
		ID: "once",
		Steps: []schema.Step{
			{ID: "only", Action: "echo", Params: map[string]any{"message": "only"}},
		},
	}

	first, err := h.orchestrator(def).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.RunStatusCompleted, first.Status)

	again, err := h.orchestrator(def).Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, again.Status)
	assert.Equal(t, first.RunID, again.RunID)
	assert.Len(t, again.CompletedSteps, 1)
	assert.Equal(t, 1, strings.Count(h.out.String(), "only"))
}
