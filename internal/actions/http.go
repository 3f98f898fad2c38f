package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

const (
	defaultHTTPTimeout     = 30 * time.Second
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB
)

// HTTPConfig configures the http action.
type HTTPConfig struct {
	DefaultTimeout  time.Duration
	MaxResponseBody int64
}

// HTTPAction performs a generic HTTP request.
type HTTPAction struct {
	cfg HTTPConfig
}

// NewHTTPAction creates the http action.
func NewHTTPAction(cfg HTTPConfig) *HTTPAction {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultHTTPTimeout
	}
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = defaultMaxResponseBody
	}
	return &HTTPAction{cfg: cfg}
}

func (a *HTTPAction) Name() string     { return "http" }
func (a *HTTPAction) Describe() string { return "Perform an HTTP request" }

// Execute performs the request. Transport failures are error results; a
// non-2xx response is still a success result carrying its status code.
func (a *HTTPAction) Execute(ctx context.Context, params map[string]any) (Result, error) {
	url := stringParam(params, "url", "")
	if url == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "http: missing required param 'url'")
	}
	method := strings.ToUpper(stringParam(params, "method", http.MethodGet))
	headers := stringMapParam(params, "headers")

	timeout := a.cfg.DefaultTimeout
	if secs := floatParam(params, "timeout", 0); secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}

	var body io.Reader
	contentType := ""
	if raw, ok := params["body"]; ok && raw != nil {
		switch b := raw.(type) {
		case string:
			body = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeValidation, "http: body not serializable: %v", err).WithCause(err)
			}
			body = bytes.NewReader(encoded)
			contentType = "application/json"
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return errorResult(err), nil
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errorResult(err), nil
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, a.cfg.MaxResponseBody))
	if err != nil {
		return errorResult(err), nil
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for k, v := range resp.Header {
		respHeaders[k] = strings.Join(v, ", ")
	}

	return Result{
		"status":      StatusSuccess,
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"text":        string(text),
	}, nil
}
