package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	gh "github.com/google/go-github/v76/github"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolhub/ghapp-mcp/internal/core"
)

// appOnly answers GetApp; any other Resources method panics on the nil
// embedded interface.
type appOnly struct {
	core.Resources
}

func (appOnly) GetApp(context.Context) (*gh.App, error) {
	return &gh.App{ID: gh.Ptr(int64(123)), Slug: gh.Ptr("my-bot")}, nil
}

func newTestServer() *Server {
	logger := slog.New(slog.DiscardHandler)
	d := core.NewDispatcher(appOnly{}, nil, core.DispatcherOptions{Logger: logger})
	return NewServer(d, "test", logger)
}

type reply struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func serve(t *testing.T, lines ...string) map[string]reply {
	t.Helper()
	var out bytes.Buffer
	err := newTestServer().Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	require.NoError(t, err)

	replies := map[string]reply{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var r reply
		require.NoError(t, json.Unmarshal([]byte(line), &r), line)
		replies[string(r.ID)] = r
	}
	return replies
}

func TestServeInitializeAndList(t *testing.T) {
	replies := serve(t,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)
	require.Len(t, replies, 2)

	var init struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(replies["1"].Result, &init))
	assert.Equal(t, mcp.LATEST_PROTOCOL_VERSION, init.ProtocolVersion)
	assert.Equal(t, ServerName, init.ServerInfo.Name)
	assert.Equal(t, "test", init.ServerInfo.Version)

	var list struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			InputSchema struct {
				Type       string                    `json:"type"`
				Properties map[string]map[string]any `json:"properties"`
				Required   []string                  `json:"required"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(replies["2"].Result, &list))
	require.Len(t, list.Tools, 15)

	first := list.Tools[0]
	assert.Equal(t, core.OpCreatePullRequest, first.Name)
	assert.Equal(t, "object", first.InputSchema.Type)
	assert.ElementsMatch(t, []string{"owner", "repo", "title", "head", "base"}, first.InputSchema.Required)
	assert.Equal(t, "boolean", first.InputSchema.Properties["draft"]["type"])

	for _, tool := range list.Tools {
		if tool.Name == core.OpListPullRequests {
			assert.Equal(t, []any{"open", "closed", "all"}, tool.InputSchema.Properties["state"]["enum"])
		}
		if tool.Name == core.OpCreateIssue {
			assert.Equal(t, "array", tool.InputSchema.Properties["labels"]["type"])
		}
	}
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func TestServeToolCalls(t *testing.T) {
	replies := serve(t,
		`{"jsonrpc":"2.0","id":"a","method":"tools/call","params":{"name":"delete_repository","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":"b","method":"tools/call","params":{"name":"get_authenticated_user"}}`,
		`{"jsonrpc":"2.0","id":"c","method":"tools/call","params":{"name":"get_repository","arguments":{"owner":"o","repo":"r"}}}`,
	)
	require.Len(t, replies, 3)

	var unknown toolResult
	require.NoError(t, json.Unmarshal(replies[`"a"`].Result, &unknown))
	assert.True(t, unknown.IsError)
	require.Len(t, unknown.Content, 1)
	assert.Equal(t, "text", unknown.Content[0].Type)
	assert.Equal(t, "Error: unknown operation: delete_repository", unknown.Content[0].Text)

	var ok toolResult
	require.NoError(t, json.Unmarshal(replies[`"b"`].Result, &ok))
	assert.False(t, ok.IsError)
	assert.Contains(t, ok.Content[0].Text, `"email": "123+my-bot[bot]@users.noreply.github.com"`)

	// the stub panics; the reply is still a failure result, not a protocol error
	var failed toolResult
	require.Nil(t, replies[`"c"`].Error)
	require.NoError(t, json.Unmarshal(replies[`"c"`].Result, &failed))
	assert.True(t, failed.IsError)
	assert.True(t, strings.HasPrefix(failed.Content[0].Text, "Error: internal error in get_repository"))
}

func TestServeProtocolErrors(t *testing.T) {
	replies := serve(t,
		`not json`,
		`{"jsonrpc":"2.0","id":7,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":8,"method":"tools/call","params":"oops"}`,
		`{"jsonrpc":"2.0","id":9,"method":"ping"}`,
	)

	require.NotNil(t, replies["null"].Error)
	assert.Equal(t, mcp.PARSE_ERROR, replies["null"].Error.Code)

	require.NotNil(t, replies["7"].Error)
	assert.Equal(t, mcp.METHOD_NOT_FOUND, replies["7"].Error.Code)
	assert.Equal(t, "method not found: resources/list", replies["7"].Error.Message)

	require.NotNil(t, replies["8"].Error)
	assert.Equal(t, mcp.INVALID_PARAMS, replies["8"].Error.Code)

	assert.Nil(t, replies["9"].Error)
	assert.JSONEq(t, `{}`, string(replies["9"].Result))
}
