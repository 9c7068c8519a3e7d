package main

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolhub/ghapp-mcp/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range config.EnvVars() {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestServeRequiresCredentials(t *testing.T) {
	clearEnv(t)

	_, _, err := execute(t, "")
	require.Error(t, err)
	assert.Equal(t, "GITHUB_APP_ID: environment variable is required", err.Error())

	t.Setenv("GITHUB_APP_ID", "123")
	t.Setenv("GITHUB_APP_INSTALLATION_ID", "abc")
	_, _, err = execute(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITHUB_APP_INSTALLATION_ID: must be a positive integer")

	t.Setenv("GITHUB_APP_INSTALLATION_ID", "456")
	t.Setenv("GITHUB_APP_PRIVATE_KEY", "-----BEGIN garbage")
	_, _, err = execute(t, "")
	require.Error(t, err)
	assert.Equal(t, "GITHUB_APP_PRIVATE_KEY: no PEM block found in private key", err.Error())
}

func TestServeStdio(t *testing.T) {
	clearEnv(t)
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	t.Setenv("GITHUB_APP_ID", "123")
	t.Setenv("GITHUB_APP_INSTALLATION_ID", "456")
	t.Setenv("GITHUB_APP_PRIVATE_KEY", strings.ReplaceAll(string(keyPEM), "\n", `\n`))

	stdin := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"fork_repository","arguments":{}}}`,
	}, "\n") + "\n"

	stdout, stderr, err := execute(t, stdin, "serve")
	require.NoError(t, err)
	assert.Contains(t, stderr, "GitHub App MCP Server running on stdio")
	assert.NotContains(t, stderr, "BEGIN RSA PRIVATE KEY")

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	byID := map[string]map[string]any{}
	for _, line := range lines {
		var msg map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &msg))
		byID[string(mustJSON(t, msg["id"]))] = msg
	}

	call := byID["2"]["result"].(map[string]any)
	assert.Equal(t, true, call["isError"])
	content := call["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "Error: unknown operation: fork_repository", content["text"])
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func writeValidateConfig(t *testing.T, command string) (root, configPath string) {
	t.Helper()
	root = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "api"), 0o755))
	configPath = filepath.Join(root, "ghapp.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
[[validate.components]]
dir = "api"
[[validate.components.steps]]
name = "lint"
command = "`+command+`"
`), 0o600))
	return root, configPath
}

func TestValidateCommand(t *testing.T) {
	clearEnv(t)
	root, configPath := writeValidateConfig(t, "echo linted")

	stdout, _, err := execute(t, "", "validate", "--config", configPath, "--workdir", root, "--json", "api/main.go")
	require.NoError(t, err)

	var report struct {
		Components []struct {
			Dir    string `json:"dir"`
			Status string `json:"status"`
			Steps  []struct {
				Output string `json:"output"`
			} `json:"steps"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Components, 1)
	assert.Equal(t, "passed", report.Components[0].Status)
	assert.Equal(t, "linted", report.Components[0].Steps[0].Output)
}

func TestValidateCommandFailure(t *testing.T) {
	clearEnv(t)
	root, configPath := writeValidateConfig(t, "exit 1")

	_, stderr, err := execute(t, "", "validate", "--config", configPath, "--workdir", root, "api/main.go")
	require.Error(t, err)
	assert.Equal(t, "validation failed: api: lint: exit code 1", err.Error())
	assert.Contains(t, stderr, "step failed")
}

func TestValidateSkipsNonCommitToolCalls(t *testing.T) {
	clearEnv(t)
	root, configPath := writeValidateConfig(t, "exit 1")

	stdout, _, err := execute(t, "", "validate", "--config", configPath, "--workdir", root,
		"--tool", "bash", "--command", "git status", "--json", "api/main.go")
	require.NoError(t, err)
	assert.Empty(t, stdout)
}
