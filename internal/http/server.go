package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/toolhub/ghapp-mcp/internal/core"
	"github.com/toolhub/ghapp-mcp/internal/telemetry"
)

// BuildInfo is injected at link time and reported by /version.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	dispatcher *core.Dispatcher
	srv        *http.Server
	logger     *slog.Logger
	build      BuildInfo
}

const maxRequestBodyBytes = 1 << 20

func NewServer(addr string, dispatcher *core.Dispatcher, logger *slog.Logger, build BuildInfo) *Server {
	s := &Server{
		dispatcher: dispatcher,
		logger:     logger,
		build:      build,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/v1/operations", s.handleListOperations)
	mux.HandleFunc("POST /api/v1/operations/{name}", s.handleInvoke)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server starting", "addr", s.srv.Addr)
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.build)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	io.WriteString(w, telemetry.RenderPrometheus())
}

type fieldView struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

type operationView struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Fields      []fieldView `json:"fields"`
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	ops := s.dispatcher.Registry().Operations()
	out := make([]operationView, 0, len(ops))
	for _, op := range ops {
		v := operationView{Name: op.Name, Description: op.Description, Fields: make([]fieldView, 0, len(op.Fields))}
		for _, f := range op.Fields {
			v.Fields = append(v.Fields, fieldView{
				Name:        f.Name,
				Type:        string(f.Type),
				Required:    f.Required,
				Description: f.Description,
				Default:     f.Default,
				Enum:        f.Enum,
			})
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": out})
}

type invokeResponse struct {
	Text    string `json:"text"`
	IsError bool   `json:"is_error"`
	Code    string `json:"code,omitempty"`
}

// handleInvoke runs one operation with the request body as its arguments.
// Failures are still 200 with is_error set; the status only reflects
// request decoding.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{}
	if r.ContentLength != 0 {
		if err := decodeJSONBody(w, r, &args); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	traceID := r.Header.Get("X-Request-Id")
	if traceID == "" {
		traceID = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", traceID)

	res := s.dispatcher.Dispatch(core.WithTraceID(r.Context(), traceID), core.Invocation{
		Name:      r.PathValue("name"),
		Arguments: args,
	})
	writeJSON(w, http.StatusOK, invokeResponse{Text: res.Text, IsError: res.IsError, Code: res.Code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
