package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/CCAgentOrg/nanobot-skills/internal/actions"
	"github.com/CCAgentOrg/nanobot-skills/internal/expressions"
	"github.com/CCAgentOrg/nanobot-skills/internal/logging"
	"github.com/CCAgentOrg/nanobot-skills/internal/store"
	"github.com/CCAgentOrg/nanobot-skills/internal/validation"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// Config carries the collaborators an Orchestrator needs.
type Config struct {
	// Store persists run and gate state. Required.
	Store store.Store
	// Registry resolves step actions. Required.
	Registry *actions.Registry
	// Logger receives engine logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator drives one workflow definition through its linear run
// loop: gate checks, variable substitution, action execution, and a
// state save after every step. It is not safe for concurrent use; one
// workflow instance is driven by one call stack.
type Orchestrator struct {
	def   *schema.WorkflowDefinition
	store store.Store
	reg   *actions.Registry
	log   *slog.Logger

	state *schema.RunState
}

// New validates the definition and builds an Orchestrator around it.
// Action registration is deliberately not checked here: an unknown
// action is a run-time fault, so the run fails, persists, and can be
// resumed once the registry is corrected.
func New(def *schema.WorkflowDefinition, cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "store is required")
	}
	if cfg.Registry == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "action registry is required")
	}

	wv, err := validation.NewWorkflowValidator(nil)
	if err != nil {
		return nil, err
	}
	if err := wv.ValidateDefinition(def); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		def:   def,
		store: cfg.Store,
		reg:   cfg.Registry,
		log:   log,
	}, nil
}

// Definition returns the workflow definition the Orchestrator runs.
func (o *Orchestrator) Definition() *schema.WorkflowDefinition {
	return o.def
}

// Run starts the workflow from the beginning, replacing any previously
// persisted state for this workflow id. It returns the final state:
// completed, awaiting_approval when a pending gate paused the run, or
// failed alongside the fault that stopped it.
func (o *Orchestrator) Run(ctx context.Context) (*schema.RunState, error) {
	now := time.Now().UTC()
	state := &schema.RunState{
		WorkflowID:     o.def.ID,
		RunID:          uuid.NewString(),
		Status:         schema.RunStatusNotStarted,
		StartedAt:      &now,
		CompletedSteps: []schema.StepRecord{},
		Variables:      cloneVariables(o.def.Variables),
		GateStates:     map[string]schema.GateStatus{},
	}
	if err := transition(state, schema.RunStatusRunning); err != nil {
		return nil, err
	}
	o.state = state
	return o.execute(ctx)
}

// Resume continues the workflow from persisted state. With no usable
// state on record it behaves exactly like Run. Resuming a completed
// run is a no-op that returns the final state unchanged.
func (o *Orchestrator) Resume(ctx context.Context) (*schema.RunState, error) {
	state, err := o.store.LoadRun(ctx, o.def.ID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		o.log.Info("no resumable state, starting fresh", "workflow_id", o.def.ID)
		return o.Run(ctx)
	}
	if state.Status == schema.RunStatusCompleted {
		o.state = state
		return state, nil
	}

	normalizeState(state)
	if err := transition(state, schema.RunStatusRunning); err != nil {
		return nil, err
	}
	// The failure and pause stamps describe a superseded attempt.
	state.Error = ""
	state.FailedAt = nil
	state.PausedAt = nil

	o.state = state
	o.log.Info("resuming workflow",
		"workflow_id", state.WorkflowID, "run_id", state.RunID, "from_step", state.CurrentStep)
	return o.execute(ctx)
}

// Status reports the workflow's current state: the in-flight state when
// a run is active on this Orchestrator, the persisted state otherwise,
// and a not_started placeholder when nothing is on record.
func (o *Orchestrator) Status(ctx context.Context) (*schema.RunState, error) {
	if o.state != nil {
		return o.state, nil
	}
	state, err := o.store.LoadRun(ctx, o.def.ID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &schema.RunState{
			WorkflowID:     o.def.ID,
			Status:         schema.RunStatusNotStarted,
			CompletedSteps: []schema.StepRecord{},
			Variables:      map[string]any{},
			GateStates:     map[string]schema.GateStatus{},
		}, nil
	}
	return state, nil
}

// Reset deletes the persisted run state and clears the in-memory
// snapshot. Gate records are left untouched: approvals outlive runs
// until the gate itself is reset.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.store.DeleteRun(ctx, o.def.ID); err != nil {
		return err
	}
	o.state = nil
	o.log.Info("workflow state reset", "workflow_id", o.def.ID)
	return nil
}

// execute runs the loop from state.CurrentStep. The state is persisted
// after every step, so a crash or pause loses at most the step in
// flight.
func (o *Orchestrator) execute(ctx context.Context) (*schema.RunState, error) {
	state := o.state
	ctx = logging.WithRun(ctx, state.WorkflowID, state.RunID)

	total := len(o.def.Steps)
	for i := state.CurrentStep; i < total; i++ {
		step := o.def.Steps[i]
		stepID := step.EffectiveID(i)
		stepCtx := logging.WithStepID(ctx, stepID)

		o.log.InfoContext(stepCtx, "executing step",
			"step", step.EffectiveName(i), "position", fmt.Sprintf("%d/%d", i+1, total))

		if step.Gate != nil {
			paused, err := o.checkGate(stepCtx, i, *step.Gate, stepID)
			if err != nil {
				return state, o.fail(stepCtx, err)
			}
			if paused {
				return state, nil
			}
		}

		result, err := o.runStep(stepCtx, step, stepID)
		if err != nil {
			return state, o.fail(stepCtx, err)
		}

		state.CompletedSteps = append(state.CompletedSteps, schema.StepRecord{
			StepID:      stepID,
			Name:        step.EffectiveName(i),
			CompletedAt: time.Now().UTC(),
			Result:      result,
		})
		state.CurrentStep = i + 1
		if err := o.persist(stepCtx); err != nil {
			return state, err
		}
	}

	if err := transition(state, schema.RunStatusCompleted); err != nil {
		return state, err
	}
	now := time.Now().UTC()
	state.CompletedAt = &now
	if err := o.persist(ctx); err != nil {
		return state, err
	}
	o.log.InfoContext(ctx, "workflow completed", "steps", len(state.CompletedSteps))
	return state, nil
}

// checkGate consults the step's approval gate and snapshots its status
// into the run state. It returns true when the run must pause; the
// pause is persisted before control returns.
func (o *Orchestrator) checkGate(ctx context.Context, index int, spec schema.GateSpec, stepID string) (bool, error) {
	state := o.state
	gate := store.NewGate(spec, state.WorkflowID, o.store, o.log)
	ctx = logging.WithGateID(ctx, gate.GateID())

	approved, err := gate.CheckApproved(ctx, stepID)
	if err != nil {
		return false, err
	}

	gateState, err := gate.State(ctx)
	if err != nil {
		return false, err
	}
	state.GateStates[gate.GateID()] = gateState.Status

	if approved {
		o.log.InfoContext(ctx, "gate approved, continuing", "gate", gate.Name())
		return false, nil
	}

	if err := transition(state, schema.RunStatusAwaitingApproval); err != nil {
		return false, err
	}
	state.CurrentStep = index
	now := time.Now().UTC()
	state.PausedAt = &now
	if err := o.persist(ctx); err != nil {
		return false, err
	}
	o.log.InfoContext(ctx, "workflow paused at approval gate",
		"gate", gate.Name(), "gate_status", string(gateState.Status))
	return true, nil
}

// runStep resolves and invokes the step's action, then applies any
// variable bindings the action declares.
func (o *Orchestrator) runStep(ctx context.Context, step schema.Step, stepID string) (actions.Result, error) {
	action, err := o.reg.Get(step.Action)
	if err != nil {
		return nil, withStep(err, stepID)
	}

	params := expressions.SubstituteParams(step.Params, o.def.Variables, o.state.Variables)

	result, err := action.Execute(ctx, params)
	if err != nil {
		var lerr *schema.LobsterError
		if errors.As(err, &lerr) {
			return nil, withStep(err, stepID)
		}
		return nil, schema.NewErrorf(schema.ErrCodeActionFault,
			"action %q failed: %v", step.Action, err).WithStep(stepID).WithCause(err)
	}

	if vw, ok := action.(actions.VariableWriter); ok {
		for k, v := range vw.Bindings(params, result) {
			o.state.Variables[k] = v
		}
	}
	return result, nil
}

// fail marks the run failed, persists, and hands the fault back.
func (o *Orchestrator) fail(ctx context.Context, cause error) error {
	state := o.state
	if err := transition(state, schema.RunStatusFailed); err != nil {
		return cause
	}
	state.Error = cause.Error()
	now := time.Now().UTC()
	state.FailedAt = &now
	if err := o.persist(ctx); err != nil {
		o.log.ErrorContext(ctx, "could not persist failed state", "error", err)
	}
	o.log.ErrorContext(ctx, "workflow failed", "error", cause)
	return cause
}

func (o *Orchestrator) persist(ctx context.Context) error {
	return o.store.SaveRun(ctx, o.state)
}

// withStep stamps the step id onto a coded error that lacks one.
func withStep(err error, stepID string) error {
	var lerr *schema.LobsterError
	if errors.As(err, &lerr) && lerr.StepID == "" {
		lerr.WithStep(stepID)
	}
	return err
}

// cloneVariables seeds runtime variables from the definition's declared
// defaults. The clone is shallow: actions treat values as read-only.
func cloneVariables(src map[string]any) map[string]any {
	vars := make(map[string]any, len(src))
	for k, v := range src {
		vars[k] = v
	}
	return vars
}

// normalizeState backfills fields that hand-edited or pre-upgrade state
// files may omit.
func normalizeState(state *schema.RunState) {
	if state.RunID == "" {
		state.RunID = uuid.NewString()
	}
	if state.Variables == nil {
		state.Variables = map[string]any{}
	}
	if state.GateStates == nil {
		state.GateStates = map[string]schema.GateStatus{}
	}
	if state.CompletedSteps == nil {
		state.CompletedSteps = []schema.StepRecord{}
	}
	if state.CurrentStep < 0 {
		state.CurrentStep = 0
	}
}
