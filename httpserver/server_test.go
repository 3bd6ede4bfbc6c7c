package httpserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolchat/chatmodel"
	"github.com/effective-security/toolchat/httpserver"
	"github.com/effective-security/toolchat/orchestrator"
	"github.com/effective-security/toolchat/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (f *fakeLLM) ModelName() string { return "fake" }

func (f *fakeLLM) Generate(context.Context, []chatmodel.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestServer(llm *fakeLLM) *httptest.Server {
	svc := orchestrator.NewService(llm, tools.NewRegistry(), tools.NewInvoker(), nil)
	return httptest.NewServer(httpserver.New(":0", svc, nil, nil).Handler())
}

func post(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &out))
	return resp.StatusCode, out
}

func Test_Ask_Success(t *testing.T) {
	srv := newTestServer(&fakeLLM{reply: `{"action":"answer","result":"X"}`})
	defer srv.Close()

	code, body := post(t, srv.URL+"/api/ask", `{"question":"what?"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "X", body["result"])
}

func Test_Ask_MissingQuestion(t *testing.T) {
	llm := &fakeLLM{reply: `{"action":"answer","result":"X"}`}
	srv := newTestServer(llm)
	defer srv.Close()

	code, body := post(t, srv.URL+"/api/ask", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "question is required", body["error"])

	code, _ = post(t, srv.URL+"/api/ask", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	// no inference calls were made for invalid input
	assert.Equal(t, 0, llm.callCount())
}

func Test_Ask_InferenceFailure(t *testing.T) {
	srv := newTestServer(&fakeLLM{err: errors.New("model quota exceeded")})
	defer srv.Close()

	code, body := post(t, srv.URL+"/api/ask", `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "inference failed", body["error"])
	assert.Contains(t, body["details"], "model quota exceeded")
}

func Test_Ask_DegradedIsSuccess(t *testing.T) {
	srv := newTestServer(&fakeLLM{reply: "no json here"})
	defer srv.Close()

	code, body := post(t, srv.URL+"/api/ask", `{"question":"q"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, orchestrator.DegradedAnswer, body["result"])
}

func Test_Healthz(t *testing.T) {
	srv := newTestServer(&fakeLLM{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "disabled", out["cache"])
}

func Test_ToolMounts(t *testing.T) {
	svc := orchestrator.NewService(&fakeLLM{}, tools.NewRegistry(), tools.NewInvoker(), nil)
	mounted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pong":true}`))
	})
	srv := httptest.NewServer(httpserver.New(":0", svc, nil, map[string]http.Handler{"/tools/ping": mounted}).Handler())
	defer srv.Close()

	code, body := post(t, srv.URL+"/tools/ping", `{}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["pong"])
}
