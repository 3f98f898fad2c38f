package store

import (
	"context"
	"log/slog"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// Store is the persistence contract shared by the file and libsql
// backends. Run records are keyed by workflow id, gate records by
// (workflow id, gate id). Load methods return (nil, nil) when no record
// exists; an unreadable record is recovered the same way after logging a
// warning, so a damaged file can never wedge a workflow. Implementations
// assume a single writer per key.
type Store interface {
	// Runs
	LoadRun(ctx context.Context, workflowID string) (*schema.RunState, error)
	SaveRun(ctx context.Context, state *schema.RunState) error
	DeleteRun(ctx context.Context, workflowID string) error
	RunExists(ctx context.Context, workflowID string) (bool, error)

	// Gates
	LoadGate(ctx context.Context, workflowID, gateID string) (*schema.GateState, error)
	SaveGate(ctx context.Context, state *schema.GateState) error
	ListGates(ctx context.Context, workflowID string) ([]*schema.GateState, error)
	DeleteGate(ctx context.Context, workflowID, gateID string) error

	// Lifecycle
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Dir is the state directory for the file backend. Empty means
	// ".lobster" in the working directory.
	Dir string
	// DSN selects the libsql backend when non-empty, e.g.
	// "file:/path/to/lobster.db".
	DSN string
	// Logger receives corrupt-state recovery warnings. Nil falls back
	// to slog.Default().
	Logger *slog.Logger
}

// Open builds the store described by cfg. The libsql backend is
// migrated to the current schema before it is returned.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.DSN != "" {
		s, err := NewLibSQLStore(cfg.DSN, cfg.Logger)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	}
	dir := cfg.Dir
	if dir == "" {
		dir = ".lobster"
	}
	return NewFileStore(dir, cfg.Logger)
}

// checkID rejects identifiers that cannot serve as a path or key
// component. Both backends apply it so ids behave identically whichever
// backend is configured.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid identifier %q", id)
	}
	for _, r := range id {
		if r == '/' || r == '\\' {
			return schema.NewErrorf(schema.ErrCodeValidation, "identifier %q contains a path separator", id)
		}
	}
	return nil
}
