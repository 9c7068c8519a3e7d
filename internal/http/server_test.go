package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gh "github.com/google/go-github/v76/github"

	"github.com/toolhub/ghapp-mcp/internal/core"
	"github.com/toolhub/ghapp-mcp/internal/telemetry"
)

type appOnly struct {
	core.Resources
}

func (appOnly) GetApp(context.Context) (*gh.App, error) {
	return &gh.App{ID: gh.Ptr(int64(9)), Slug: gh.Ptr("ops-bot")}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	d := core.NewDispatcher(appOnly{}, nil, core.DispatcherOptions{Logger: logger})
	return NewServer("127.0.0.1:0", d, logger, BuildInfo{Version: "dev"})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestServer(t), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestListOperations(t *testing.T) {
	rr := do(t, newTestServer(t), http.MethodGet, "/api/v1/operations", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var got struct {
		Operations []operationView `json:"operations"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Operations) != 15 {
		t.Fatalf("expected 15 operations, got %d", len(got.Operations))
	}
	first := got.Operations[0]
	if first.Name != core.OpCreatePullRequest {
		t.Fatalf("unexpected first operation %q", first.Name)
	}
	if len(first.Fields) == 0 || first.Fields[0].Name != "owner" || !first.Fields[0].Required {
		t.Fatalf("unexpected fields: %+v", first.Fields)
	}
}

func TestInvokeOperation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		isError bool
		text    string
	}{
		{name: "success", path: "/api/v1/operations/get_authenticated_user", status: http.StatusOK, text: `"name": "ops-bot[bot]"`},
		{name: "unknown", path: "/api/v1/operations/nope", body: `{}`, status: http.StatusOK, isError: true, text: "Error: unknown operation: nope"},
		{name: "missing argument", path: "/api/v1/operations/get_issue", body: `{"owner":"o","repo":"r"}`, status: http.StatusOK, isError: true, text: `argument "issue_number" is required`},
		{name: "bad body", path: "/api/v1/operations/get_issue", body: `[1,2`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			if rr.Header().Get("X-Request-Id") == "" {
				t.Fatal("expected X-Request-Id header")
			}
			var got invokeResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if got.IsError != tt.isError {
				t.Fatalf("is_error = %v, want %v (%s)", got.IsError, tt.isError, got.Text)
			}
			if !strings.Contains(got.Text, tt.text) {
				t.Fatalf("text %q does not contain %q", got.Text, tt.text)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	telemetry.Reset()
	t.Cleanup(telemetry.Reset)

	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/operations/get_authenticated_user", "")

	rr := do(t, s, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	want := `ghapp_operation_calls_total{operation="get_authenticated_user",status="ok"} 1`
	if !strings.Contains(rr.Body.String(), want) {
		t.Fatalf("metrics missing %q:\n%s", want, rr.Body.String())
	}
}
