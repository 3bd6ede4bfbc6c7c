package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolchat", "tools")

// responses larger than this are truncated before being folded into the
// conversation
const maxResponseBytes = 1 << 20

// Doer performs a HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Invoker performs one exchange with a tool endpoint. Every failure mode is
// returned as an error value; nothing panics past this boundary.
type Invoker struct {
	httpClient Doer
}

func NewInvoker() *Invoker {
	return &Invoker{httpClient: http.DefaultClient}
}

// WithHTTPClient overrides the HTTP client, mostly for tests.
func (v *Invoker) WithHTTPClient(client Doer) *Invoker {
	v.httpClient = client
	return v
}

type invokeRequest struct {
	Args map[string]any `json:"args"`
}

// Invoke sends the args to the endpoint and returns the raw JSON payload.
// A non-2xx status produces an error carrying the response body text; a
// transport failure produces an error carrying the underlying cause.
func (v *Invoker) Invoke(ctx context.Context, endpoint string, args map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(invokeRequest{Args: args})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tool args")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request for %s", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "tool endpoint unreachable: %s", endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tool response from %s", endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_call_rejected",
			"endpoint", endpoint,
			"code", resp.StatusCode,
		)
		return nil, errors.Newf("tool returned status %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}

	return json.RawMessage(payload), nil
}
