package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CCAgentOrg/nanobot-skills/internal/definition"
	"github.com/CCAgentOrg/nanobot-skills/internal/validation"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

func examplesDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "examples")
}

// loadExample reads examples/<name>/workflow.yaml through the real
// definition loader, so the shipped files stay schema-valid.
func loadExample(t *testing.T, name string) *schema.WorkflowDefinition {
	t.Helper()
	loader, err := definition.NewLoader()
	require.NoError(t, err)
	def, err := loader.Load(filepath.Join(examplesDir(), name, "workflow.yaml"))
	require.NoError(t, err)
	return def
}

// TestExamplesValidate sweeps every shipped example through structural
// and semantic validation against the builtin action set.
func TestExamplesValidate(t *testing.T) {
	h := newHarness(t)

	entries, err := os.ReadDir(examplesDir())
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	wv, err := validation.NewWorkflowValidator(h.reg)
	require.NoError(t, err)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		def := loadExample(t, entry.Name())
		result := wv.Validate(def)
		assert.True(t, result.Valid(), "example %s: %v", entry.Name(), result.Errors)
	}
}

func TestExampleReleaseDigest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	def := loadExample(t, "release-digest")

	state, err := h.orchestrator(def).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.RunStatusAwaitingApproval, state.Status)
	assert.Equal(t, 5, state.CurrentStep)

	// The digest flowed through eval and jq before the gate paused it.
	assert.Equal(t, "example/openclaw v1.4.0 released", state.Variables["subject"])
	entry, ok := state.Variables["entry"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v1.4.0", entry["tag"])
	assert.Equal(t, "#releases", entry["channel"])

	_, err = h.gate("release-digest", "publish-approval").Approve(ctx, "editor", "looks good")
	require.NoError(t, err)

	state, err = h.orchestrator(def).Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, state.Status)
	assert.Contains(t, h.out.String(), "example/openclaw v1.4.0 released")
}

func TestExampleNightlyReport(t *testing.T) {
	h := newHarness(t)
	def := loadExample(t, "nightly-report")

	state, err := h.orchestrator(def).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, schema.RunStatusCompleted, state.Status)

	report, ok := state.Variables["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Consolidated Report", report["title"])
	sections, ok := report["sections"].([]any)
	require.True(t, ok)
	assert.Len(t, sections, 3)
	assert.EqualValues(t, 3, state.Variables["section_count"])
}

func TestExampleDeployWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	def := loadExample(t, "deploy-window")

	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	def.Variables["notify_url"] = srv.URL

	state, err := h.orchestrator(def).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.RunStatusAwaitingApproval, state.Status)
	assert.Equal(t, 2, state.CurrentStep)

	_, err = h.gate("deploy-window", "deploy-window").Approve(ctx, "release-manager", "window open")
	require.NoError(t, err)

	state, err = h.orchestrator(def).Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusCompleted, state.Status)

	require.NotNil(t, received)
	assert.Equal(t, "deploy.completed", received["event"])
	assert.Equal(t, "staging", received["environment"])
}
