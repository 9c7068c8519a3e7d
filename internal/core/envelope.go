package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Invocation is one call of a named operation.
type Invocation struct {
	Name      string
	Arguments map[string]any
}

// Result is the uniform reply for every invocation. Failures carry
// "Error: <message>" in Text and set IsError; they never surface as Go
// errors or panics.
type Result struct {
	Text    string
	IsError bool
	// Code is the ErrorCode of a failure, for logs and metrics.
	Code string
}

func failure(err error) Result {
	return Result{Text: "Error: " + err.Error(), IsError: true, Code: ErrorCode(err)}
}

// rawText is a payload returned to the caller as-is rather than as JSON.
type rawText string

// rawJSON is an upstream payload passed through unprojected.
type rawJSON []byte

// render serializes a payload the way the caller sees it: two-space
// indented JSON with HTML characters left unescaped.
func render(payload any) (string, error) {
	switch p := payload.(type) {
	case rawText:
		return string(p), nil
	case rawJSON:
		var buf bytes.Buffer
		if err := json.Indent(&buf, p, "", "  "); err != nil {
			return "", fmt.Errorf("indent upstream payload: %w", err)
		}
		return buf.String(), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// WithTraceID attaches a request trace id that dispatch logs carry.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}
