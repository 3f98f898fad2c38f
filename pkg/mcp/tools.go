package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/CCAgentOrg/nanobot-skills/internal/engine"
	"github.com/CCAgentOrg/nanobot-skills/internal/store"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// handleRun starts a workflow from the beginning, replacing any prior
// run state for its workflow id. The final run state is returned, which
// may be paused at a gate or failed; only a broken definition or a
// faulted step surfaces as a tool error.
func (s *Server) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, errResult := s.loadDefinition(req)
	if errResult != nil {
		return errResult, nil
	}

	orc, err := engine.New(def, s.engineConfig())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid workflow: %v", err)), nil
	}

	s.captureSession(ctx, def.ID)

	state, runErr := orc.Run(ctx)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow run failed: %v", runErr)), nil
	}
	return marshalResult(state)
}

// handleResume continues a paused or failed workflow from its persisted
// state. With no prior state it behaves like handleRun.
func (s *Server) handleResume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, errResult := s.loadDefinition(req)
	if errResult != nil {
		return errResult, nil
	}

	orc, err := engine.New(def, s.engineConfig())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid workflow: %v", err)), nil
	}

	s.captureSession(ctx, def.ID)

	state, resumeErr := orc.Resume(ctx)
	if resumeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow resume failed: %v", resumeErr)), nil
	}
	return marshalResult(state)
}

// handleStatus returns the persisted run state of a workflow. No
// definition is needed; a workflow that never ran reports not_started.
func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	state, loadErr := s.store.LoadRun(ctx, workflowID)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status query failed: %v", loadErr)), nil
	}
	if state == nil {
		state = &schema.RunState{WorkflowID: workflowID, Status: schema.RunStatusNotStarted}
	}
	return marshalResult(state)
}

// handleApprove flips a gate to approved. This is the out-of-band path:
// no definition or run state is loaded, only the gate record.
func (s *Server) handleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	gateID, err := req.RequireString("gate_id")
	if err != nil {
		return mcp.NewToolResultError("gate_id is required"), nil
	}
	approvedBy := req.GetString("approved_by", "mcp")
	reason := req.GetString("reason", "")

	gate := store.NewGate(schema.GateSpec{ID: gateID}, workflowID, s.store, s.logger)
	state, approveErr := gate.Approve(ctx, approvedBy, reason)
	if approveErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("approve failed: %v", approveErr)), nil
	}

	s.notifyDecision(ctx, workflowID, "gate_approved", state)
	return marshalResult(state)
}

// handleReject flips a gate to rejected.
func (s *Server) handleReject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	gateID, err := req.RequireString("gate_id")
	if err != nil {
		return mcp.NewToolResultError("gate_id is required"), nil
	}
	reason := req.GetString("reason", "")

	gate := store.NewGate(schema.GateSpec{ID: gateID}, workflowID, s.store, s.logger)
	state, rejectErr := gate.Reject(ctx, reason)
	if rejectErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reject failed: %v", rejectErr)), nil
	}

	s.notifyDecision(ctx, workflowID, "gate_rejected", state)
	return marshalResult(state)
}

// handleGates lists every gate record of a workflow.
func (s *Server) handleGates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	gates, listErr := s.store.ListGates(ctx, workflowID)
	if listErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("gate query failed: %v", listErr)), nil
	}
	if gates == nil {
		gates = []*schema.GateState{}
	}
	return marshalResult(map[string]any{
		"workflow_id": workflowID,
		"gates":       gates,
	})
}

// handleActions lists the registered step actions.
func (s *Server) handleActions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"actions": s.registry.Infos()})
}

// --- Internal helpers ---

// loadDefinition resolves the definition argument pair: an inline
// document or a file path, exactly one of the two.
func (s *Server) loadDefinition(req mcp.CallToolRequest) (*schema.WorkflowDefinition, *mcp.CallToolResult) {
	doc := mcp.ParseStringMap(req, "definition", nil)
	path := req.GetString("path", "")

	switch {
	case doc != nil && path != "":
		return nil, mcp.NewToolResultError("pass either definition or path, not both")
	case doc != nil:
		def, err := s.loader.FromDocument(doc)
		if err != nil {
			return nil, mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", err))
		}
		return def, nil
	case path != "":
		def, err := s.loader.Load(path)
		if err != nil {
			return nil, mcp.NewToolResultError(fmt.Sprintf("load %s: %v", path, err))
		}
		return def, nil
	default:
		return nil, mcp.NewToolResultError("definition or path is required")
	}
}

func (s *Server) engineConfig() engine.Config {
	return engine.Config{
		Store:    s.store,
		Registry: s.registry,
		Logger:   s.logger,
	}
}

// captureSession maps the workflow to the calling MCP session so later
// gate decisions can be pushed back to whoever launched the run.
func (s *Server) captureSession(ctx context.Context, workflowID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(workflowID, session.SessionID())
	}
}

// notifyDecision tells the launching session about a gate decision.
// Best-effort: an unreachable session is logged, never an error.
func (s *Server) notifyDecision(ctx context.Context, workflowID, event string, gate *schema.GateState) {
	payload := map[string]any{
		"event":       event,
		"workflow_id": workflowID,
		"gate_id":     gate.GateID,
		"status":      string(gate.Status),
	}
	if err := s.notifier.Notify(ctx, workflowID, payload); err != nil {
		s.logger.Warn("gate notification failed",
			slog.String("workflow_id", workflowID),
			slog.String("error", err.Error()),
		)
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
