package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// LibSQLStore keeps run and gate records as JSON documents in a libsql
// (embedded SQLite fork) database, one row per key. It serves the same
// contract as FileStore for deployments that prefer a single database
// file over a directory of JSON documents.
type LibSQLStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewLibSQLStore opens a libsql database at the given path. The path
// should be a file URI, e.g. "file:/path/to/lobster.db". Call Migrate
// before first use; Open does this for you.
func NewLibSQLStore(dbPath string, log *slog.Logger) (*LibSQLStore, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "open libsql: %v", err).WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db, log: log}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate applies any pending schema migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "migrate: %v", err).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) LoadRun(ctx context.Context, workflowID string) (*schema.RunState, error) {
	if err := checkID(workflowID); err != nil {
		return nil, err
	}
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM runs WHERE workflow_id = ?`, workflowID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "load run %s: %v", workflowID, err).WithCause(err)
	}
	var state schema.RunState
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		s.log.Warn("recovering unreadable state as empty",
			"kind", "run", "id", workflowID, "error", err)
		return nil, nil
	}
	return &state, nil
}

func (s *LibSQLStore) SaveRun(ctx context.Context, state *schema.RunState) error {
	if err := checkID(state.WorkflowID); err != nil {
		return err
	}
	doc, err := json.Marshal(state)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "encode state: %v", err).WithCause(err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (workflow_id, status, state, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(workflow_id) DO UPDATE SET
		   status=excluded.status, state=excluded.state, updated_at=CURRENT_TIMESTAMP`,
		state.WorkflowID, string(state.Status), string(doc),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save run %s: %v", state.WorkflowID, err).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) DeleteRun(ctx context.Context, workflowID string) error {
	if err := checkID(workflowID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE workflow_id = ?`, workflowID); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete run %s: %v", workflowID, err).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) RunExists(ctx context.Context, workflowID string) (bool, error) {
	if err := checkID(workflowID); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM runs WHERE workflow_id = ?`, workflowID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeStore, "check run %s: %v", workflowID, err).WithCause(err)
	}
	return true, nil
}

func (s *LibSQLStore) LoadGate(ctx context.Context, workflowID, gateID string) (*schema.GateState, error) {
	if err := checkID(workflowID); err != nil {
		return nil, err
	}
	if err := checkID(gateID); err != nil {
		return nil, err
	}
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM gates WHERE workflow_id = ? AND gate_id = ?`, workflowID, gateID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "load gate %s/%s: %v", workflowID, gateID, err).WithCause(err)
	}
	var state schema.GateState
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		s.log.Warn("recovering unreadable state as empty",
			"kind", "gate", "id", gateID, "error", err)
		return nil, nil
	}
	return &state, nil
}

func (s *LibSQLStore) SaveGate(ctx context.Context, state *schema.GateState) error {
	if err := checkID(state.WorkflowID); err != nil {
		return err
	}
	if err := checkID(state.GateID); err != nil {
		return err
	}
	doc, err := json.Marshal(state)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "encode state: %v", err).WithCause(err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO gates (workflow_id, gate_id, status, state, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(workflow_id, gate_id) DO UPDATE SET
		   status=excluded.status, state=excluded.state, updated_at=CURRENT_TIMESTAMP`,
		state.WorkflowID, state.GateID, string(state.Status), string(doc),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save gate %s/%s: %v", state.WorkflowID, state.GateID, err).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) ListGates(ctx context.Context, workflowID string) ([]*schema.GateState, error) {
	if err := checkID(workflowID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT gate_id, state FROM gates WHERE workflow_id = ? ORDER BY gate_id`, workflowID,
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list gates for %s: %v", workflowID, err).WithCause(err)
	}
	defer rows.Close()

	var gates []*schema.GateState
	for rows.Next() {
		var gateID, doc string
		if err := rows.Scan(&gateID, &doc); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "list gates for %s: %v", workflowID, err).WithCause(err)
		}
		var state schema.GateState
		if err := json.Unmarshal([]byte(doc), &state); err != nil {
			s.log.Warn("recovering unreadable state as empty",
				"kind", "gate", "id", gateID, "error", err)
			continue
		}
		gates = append(gates, &state)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list gates for %s: %v", workflowID, err).WithCause(err)
	}
	return gates, nil
}

func (s *LibSQLStore) DeleteGate(ctx context.Context, workflowID, gateID string) error {
	if err := checkID(workflowID); err != nil {
		return err
	}
	if err := checkID(gateID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM gates WHERE workflow_id = ? AND gate_id = ?`, workflowID, gateID); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete gate %s/%s: %v", workflowID, gateID, err).WithCause(err)
	}
	return nil
}

var _ Store = (*LibSQLStore)(nil)
