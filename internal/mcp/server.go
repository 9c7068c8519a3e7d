package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/toolhub/ghapp-mcp/internal/core"
)

const ServerName = "github-app-mcp"

const maxLineBytes = 4 * 1024 * 1024

// Server speaks newline-delimited JSON-RPC over stdio or TCP and hands
// tools/call requests to the dispatcher.
type Server struct {
	dispatcher *core.Dispatcher
	version    string
	logger     *slog.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

func NewServer(dispatcher *core.Dispatcher, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{dispatcher: dispatcher, version: version, logger: logger}
}

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// notification reports whether the request carries no id and expects no reply.
func (r jsonRPCRequest) notification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Serve reads requests from r until EOF or ctx is done, writing replies to
// w. Tool calls run concurrently; Serve waits for in-flight calls before
// returning.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	out := &lockedWriter{w: w}
	var wg sync.WaitGroup
	defer wg.Wait()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req jsonRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			out.write(jsonRPCResponse{
				JSONRPC: mcp.JSONRPC_VERSION,
				ID:      json.RawMessage("null"),
				Error:   &rpcError{Code: mcp.PARSE_ERROR, Message: "parse error"},
			})
			continue
		}

		if mcp.MCPMethod(req.Method) == mcp.MethodToolsCall {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp := s.handleToolCall(ctx, req)
				if !req.notification() {
					out.write(resp)
				}
			}()
			continue
		}

		resp, ok := s.handle(req)
		if ok && !req.notification() {
			out.write(resp)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

// handle answers every method except tools/call. ok is false for
// notifications that need no reply.
func (s *Server) handle(req jsonRPCRequest) (jsonRPCResponse, bool) {
	base := jsonRPCResponse{JSONRPC: mcp.JSONRPC_VERSION, ID: req.ID}

	switch mcp.MCPMethod(req.Method) {
	case mcp.MethodInitialize:
		base.Result = map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
			"serverInfo":      mcp.Implementation{Name: ServerName, Version: s.version},
		}
		return base, true
	case mcp.MethodPing:
		base.Result = map[string]any{}
		return base, true
	case mcp.MethodToolsList:
		base.Result = mcp.ListToolsResult{Tools: Tools(s.dispatcher.Registry())}
		return base, true
	}

	if req.notification() {
		s.logger.Debug("notification ignored", "method", req.Method)
		return base, false
	}
	base.Error = &rpcError{Code: mcp.METHOD_NOT_FOUND, Message: fmt.Sprintf("method not found: %s", req.Method)}
	return base, true
}

func (s *Server) handleToolCall(ctx context.Context, req jsonRPCRequest) jsonRPCResponse {
	base := jsonRPCResponse{JSONRPC: mcp.JSONRPC_VERSION, ID: req.ID}

	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		base.Error = &rpcError{Code: mcp.INVALID_PARAMS, Message: "invalid params: " + err.Error()}
		return base
	}

	traceID := uuid.NewString()
	res := s.dispatcher.Dispatch(core.WithTraceID(ctx, traceID), core.Invocation{
		Name:      params.Name,
		Arguments: params.Arguments,
	})
	if res.IsError {
		base.Result = mcp.NewToolResultError(res.Text)
	} else {
		base.Result = mcp.NewToolResultText(res.Text)
	}
	return base
}

// ListenAndServe accepts TCP connections on addr and serves each one until
// Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("mcp server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			s.logger.Error("mcp accept error", "err", err)
			continue
		}
		go func() {
			defer conn.Close()
			if err := s.Serve(ctx, conn, conn); err != nil {
				s.logger.Warn("mcp connection closed", "remote", conn.RemoteAddr().String(), "err", err)
			}
		}()
	}
}

// Addr returns the TCP listen address, or nil before ListenAndServe binds.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Shutdown(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) write(resp jsonRPCResponse) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(data)
}
