package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// Notifier pushes gate decisions to connected sessions.
type Notifier interface {
	Notify(ctx context.Context, workflowID string, payload map[string]any) error
}

// GateNotifier implements Notifier using MCP push notifications.
type GateNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewGateNotifier creates a notifier that pushes to the session
// recorded for each workflow.
func NewGateNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *GateNotifier {
	return &GateNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to the session that launched the
// workflow. Best-effort: returns nil if no session launched it.
func (n *GateNotifier) Notify(_ context.Context, workflowID string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(workflowID)
	if !ok {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// The session expired between lookup and send, so the mapping
		// is stale rather than the decision lost.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}
