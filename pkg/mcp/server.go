package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/CCAgentOrg/nanobot-skills/internal/actions"
	"github.com/CCAgentOrg/nanobot-skills/internal/definition"
	"github.com/CCAgentOrg/nanobot-skills/internal/store"
)

// ServerConfig holds the dependencies for creating a Server.
type ServerConfig struct {
	Store    store.Store
	Registry *actions.Registry
	Logger   *slog.Logger
}

// Server wraps an MCP server with lobster tool handlers.
type Server struct {
	store     store.Store
	registry  *actions.Registry
	loader    *definition.Loader
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  Notifier
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all seven tools registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	loader, err := definition.NewLoader()
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:    cfg.Store,
		registry: cfg.Registry,
		loader:   loader,
		logger:   logger,
		sessions: NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"lobster",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Lobster runs resumable linear workflows with human approval gates. Use lobster.run to start a workflow, lobster.status to inspect its run state, lobster.approve or lobster.reject to decide a pending gate, lobster.resume to continue a paused or failed run, lobster.gates to list gate records, and lobster.actions to list the registered step actions."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewGateNotifier(mcpSrv, s.sessions)
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 7 registered MCP tools as ServerTool entries.
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: resumeTool(), Handler: s.handleResume},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: approveTool(), Handler: s.handleApprove},
		{Tool: rejectTool(), Handler: s.handleReject},
		{Tool: gatesTool(), Handler: s.handleGates},
		{Tool: actionsTool(), Handler: s.handleActions},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("lobster.run",
		mcp.WithDescription("Run a workflow from the beginning, replacing any prior run state for its workflow id"),
		mcp.WithObject("definition", mcp.Description("Inline workflow definition object")),
		mcp.WithString("path", mcp.Description("Path to a YAML or JSON workflow file on the host (alternative to definition)")),
	)
}

func resumeTool() mcp.Tool {
	return mcp.NewTool("lobster.resume",
		mcp.WithDescription("Resume a paused or failed workflow from its persisted run state"),
		mcp.WithObject("definition", mcp.Description("Inline workflow definition object")),
		mcp.WithString("path", mcp.Description("Path to a YAML or JSON workflow file on the host (alternative to definition)")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("lobster.status",
		mcp.WithDescription("Get the persisted run state of a workflow"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to query")),
	)
}

func approveTool() mcp.Tool {
	return mcp.NewTool("lobster.approve",
		mcp.WithDescription("Approve an approval gate so the workflow passes it on the next run or resume"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow owning the gate")),
		mcp.WithString("gate_id", mcp.Required(), mcp.Description("ID of the gate to approve")),
		mcp.WithString("approved_by", mcp.Description("Identity recorded on the approval (default: mcp)")),
		mcp.WithString("reason", mcp.Description("Reason recorded on the approval")),
	)
}

func rejectTool() mcp.Tool {
	return mcp.NewTool("lobster.reject",
		mcp.WithDescription("Reject an approval gate; the workflow stays paused until the gate is approved or reset"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow owning the gate")),
		mcp.WithString("gate_id", mcp.Required(), mcp.Description("ID of the gate to reject")),
		mcp.WithString("reason", mcp.Description("Reason recorded on the rejection")),
	)
}

func gatesTool() mcp.Tool {
	return mcp.NewTool("lobster.gates",
		mcp.WithDescription("List all gate records of a workflow"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to query")),
	)
}

func actionsTool() mcp.Tool {
	return mcp.NewTool("lobster.actions",
		mcp.WithDescription("List the registered step actions"),
	)
}
