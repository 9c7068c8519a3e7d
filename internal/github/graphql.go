package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/toolhub/ghapp-mcp/internal/telemetry"
)

// GraphQL is the graph transport. It is used only for data the REST API
// does not expose: review thread state and its mutations.
type GraphQL struct {
	endpoint string
	http     *http.Client
}

// NewGraphQL posts queries to endpoint with broker-authenticated requests.
func NewGraphQL(broker *Broker, endpoint string) *GraphQL {
	return &GraphQL{endpoint: strings.TrimSpace(endpoint), http: broker.HTTPClient()}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
	// Set on non-200 replies such as "Bad credentials".
	Message string `json:"message"`
}

// maxResponseBytes bounds a single GraphQL reply.
const maxResponseBytes = 16 << 20

// Query runs document with variables and decodes the data member into out.
// GraphQL-level errors are folded into an *UpstreamError even when partial
// data came back.
func (g *GraphQL) Query(ctx context.Context, op, document string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: document, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return authErr
		}
		return g.fail(op, 0, "", err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return g.fail(op, resp.StatusCode, "", fmt.Sprintf("read graphql response: %v", err))
	}

	var decoded graphQLResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return g.fail(op, resp.StatusCode, "", fmt.Sprintf("%s: HTTP %d", op, resp.StatusCode))
		}
		return g.fail(op, resp.StatusCode, "", fmt.Sprintf("decode graphql response: %v", err))
	}
	if resp.StatusCode != http.StatusOK {
		msg := decoded.Message
		if msg == "" {
			msg = fmt.Sprintf("%s: HTTP %d", op, resp.StatusCode)
		}
		return g.fail(op, resp.StatusCode, "", msg)
	}
	if len(decoded.Errors) > 0 {
		msgs := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			msgs = append(msgs, e.Message)
		}
		return g.fail(op, resp.StatusCode, decoded.Errors[0].Type, strings.Join(msgs, "; "))
	}
	if out == nil || len(decoded.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return g.fail(op, resp.StatusCode, "", fmt.Sprintf("decode graphql data: %v", err))
	}
	return nil
}

func (g *GraphQL) fail(op string, status int, typ, msg string) error {
	ue := &UpstreamError{
		Transport:   TransportGraphQL,
		Operation:   op,
		StatusCode:  status,
		Message:     msg,
		Type:        typ,
		RateLimited: typ == "RATE_LIMITED",
	}
	if status == http.StatusOK {
		ue.StatusCode = 0
	}
	telemetry.IncUpstreamError(TransportGraphQL, ue.StatusCode)
	return ue
}
