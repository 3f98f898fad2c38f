package definition

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CCAgentOrg/nanobot-skills/internal/validation"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// Loader reads workflow definition documents and binds them to
// WorkflowDefinition. The raw document is validated against the
// definition schema before binding, so unknown keys fail instead of
// being silently dropped.
type Loader struct {
	validator *validation.WorkflowValidator
}

// NewLoader creates a Loader with the definition schema compiled.
func NewLoader() (*Loader, error) {
	wv, err := validation.NewWorkflowValidator(nil)
	if err != nil {
		return nil, err
	}
	return &Loader{validator: wv}, nil
}

// Load reads a definition from a YAML or JSON file, chosen by
// extension.
func (l *Loader) Load(path string) (*schema.WorkflowDefinition, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, schema.NewErrorf(schema.ErrCodeDefinition,
			"unsupported definition file type %q (use .yaml, .yml or .json)", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeDefinition, "read definition %s", path).WithCause(err)
	}
	return l.Parse(data)
}

// Parse binds a definition document to a WorkflowDefinition. YAML is a
// superset of JSON, so one decoder covers both file types.
func (l *Loader) Parse(data []byte) (*schema.WorkflowDefinition, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeDefinition, "definition is not valid YAML/JSON").WithCause(err)
	}
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeDefinition, "definition document is empty")
	}
	if err := l.validator.ValidateDocument(doc); err != nil {
		return nil, err
	}

	var def schema.WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, schema.NewError(schema.ErrCodeDefinition, "definition does not match the workflow shape").WithCause(err)
	}
	if err := l.validator.ValidateDefinition(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// FromDocument validates an already-decoded definition document (for
// example the inline object an MCP client sends) and binds it.
func (l *Loader) FromDocument(doc any) (*schema.WorkflowDefinition, error) {
	if err := l.validator.ValidateDocument(doc); err != nil {
		return nil, err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeDefinition, "definition is not JSON-compatible").WithCause(err)
	}
	var def schema.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, schema.NewError(schema.ErrCodeDefinition, "definition does not match the workflow shape").WithCause(err)
	}
	if err := l.validator.ValidateDefinition(&def); err != nil {
		return nil, err
	}
	return &def, nil
}
