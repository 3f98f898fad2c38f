package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// FileStore keeps one JSON document per record inside a state directory:
// runs at "<dir>/<workflow_id>.json" and gates at
// "<dir>/gate_<workflow_id>_<gate_id>.json". Writes go to a temp file in
// the same directory and are renamed into place, so a crash mid-write
// leaves either the old record or the new one, never a truncated file.
type FileStore struct {
	dir string
	log *slog.Logger
}

// NewFileStore creates the state directory if needed and returns a store
// rooted there.
func NewFileStore(dir string, log *slog.Logger) (*FileStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "create state directory %s: %v", dir, err).WithCause(err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

// Dir returns the state directory the store is rooted at.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) runPath(workflowID string) string {
	return filepath.Join(s.dir, workflowID+".json")
}

func (s *FileStore) gatePath(workflowID, gateID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("gate_%s_%s.json", workflowID, gateID))
}

func (s *FileStore) LoadRun(ctx context.Context, workflowID string) (*schema.RunState, error) {
	if err := checkID(workflowID); err != nil {
		return nil, err
	}
	data, ok := s.readRecord(s.runPath(workflowID), "run", workflowID)
	if !ok {
		return nil, nil
	}
	var state schema.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		s.warnCorrupt("run", workflowID, err)
		return nil, nil
	}
	return &state, nil
}

func (s *FileStore) SaveRun(ctx context.Context, state *schema.RunState) error {
	if err := checkID(state.WorkflowID); err != nil {
		return err
	}
	return s.writeRecord(s.runPath(state.WorkflowID), state)
}

func (s *FileStore) DeleteRun(ctx context.Context, workflowID string) error {
	if err := checkID(workflowID); err != nil {
		return err
	}
	return s.remove(s.runPath(workflowID))
}

func (s *FileStore) RunExists(ctx context.Context, workflowID string) (bool, error) {
	if err := checkID(workflowID); err != nil {
		return false, err
	}
	_, err := os.Stat(s.runPath(workflowID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, schema.NewErrorf(schema.ErrCodeStore, "stat run state: %v", err).WithCause(err)
}

func (s *FileStore) LoadGate(ctx context.Context, workflowID, gateID string) (*schema.GateState, error) {
	if err := checkID(workflowID); err != nil {
		return nil, err
	}
	if err := checkID(gateID); err != nil {
		return nil, err
	}
	data, ok := s.readRecord(s.gatePath(workflowID, gateID), "gate", gateID)
	if !ok {
		return nil, nil
	}
	var state schema.GateState
	if err := json.Unmarshal(data, &state); err != nil {
		s.warnCorrupt("gate", gateID, err)
		return nil, nil
	}
	return &state, nil
}

func (s *FileStore) SaveGate(ctx context.Context, state *schema.GateState) error {
	if err := checkID(state.WorkflowID); err != nil {
		return err
	}
	if err := checkID(state.GateID); err != nil {
		return err
	}
	return s.writeRecord(s.gatePath(state.WorkflowID, state.GateID), state)
}

func (s *FileStore) ListGates(ctx context.Context, workflowID string) ([]*schema.GateState, error) {
	if err := checkID(workflowID); err != nil {
		return nil, err
	}
	pattern := filepath.Join(s.dir, fmt.Sprintf("gate_%s_*.json", workflowID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "scan gates: %v", err).WithCause(err)
	}
	var gates []*schema.GateState
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			s.warnCorrupt("gate", filepath.Base(path), err)
			continue
		}
		var state schema.GateState
		if err := json.Unmarshal(data, &state); err != nil {
			s.warnCorrupt("gate", filepath.Base(path), err)
			continue
		}
		// Underscores inside workflow ids make the glob overmatch, so
		// filter on the workflow id recorded in the file itself.
		if state.WorkflowID != workflowID {
			continue
		}
		gates = append(gates, &state)
	}
	return gates, nil
}

func (s *FileStore) DeleteGate(ctx context.Context, workflowID, gateID string) error {
	if err := checkID(workflowID); err != nil {
		return err
	}
	if err := checkID(gateID); err != nil {
		return err
	}
	return s.remove(s.gatePath(workflowID, gateID))
}

func (s *FileStore) Close() error { return nil }

// readRecord reads a record file. A missing file reports (nil, false)
// silently; any other read failure is recovered as absent after a
// warning, honoring the rule that a damaged record never fails a load.
func (s *FileStore) readRecord(path, kind, id string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.warnCorrupt(kind, id, err)
		}
		return nil, false
	}
	return data, true
}

func (s *FileStore) writeRecord(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "encode state: %v", err).WithCause(err)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create temp file: %v", err).WithCause(err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return schema.NewErrorf(schema.ErrCodeStore, "write state: %v", err).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return schema.NewErrorf(schema.ErrCodeStore, "write state: %v", err).WithCause(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return schema.NewErrorf(schema.ErrCodeStore, "replace state file: %v", err).WithCause(err)
	}
	return nil
}

func (s *FileStore) remove(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeStore, "delete state file: %v", err).WithCause(err)
}

func (s *FileStore) warnCorrupt(kind, id string, err error) {
	s.log.Warn("recovering unreadable state as empty",
		"kind", kind, "id", id, "error", err)
}

var _ Store = (*FileStore)(nil)
