//go:build !short

package core_test

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/toolhub/ghapp-mcp/internal/config"
	"github.com/toolhub/ghapp-mcp/internal/core"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file location")
	}
	root := filepath.Join(filepath.Dir(file), "..", "..")
	abs, err := filepath.Abs(root)
	if err != nil {
		t.Fatalf("cannot resolve repo root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(abs, "README.md")); err != nil {
		t.Fatalf("repo root %q does not contain README.md", abs)
	}
	return abs
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cannot read %s: %v", path, err)
	}
	return string(data)
}

func TestDocDrift_EnvVarsInExample(t *testing.T) {
	envExample := readFile(t, filepath.Join(repoRoot(t), ".env.example"))

	reEnvLine := regexp.MustCompile(`^#?\s*([A-Z][A-Z0-9_]*)=`)
	exampleVars := make(map[string]bool)
	for _, line := range strings.Split(envExample, "\n") {
		if m := reEnvLine.FindStringSubmatch(line); m != nil {
			exampleVars[m[1]] = true
		}
	}

	var missing []string
	for _, v := range config.EnvVars() {
		if !exampleVars[v] {
			missing = append(missing, v)
		}
	}
	sort.Strings(missing)
	if len(missing) > 0 {
		t.Errorf("env vars understood by config.Load but missing from .env.example:\n  %s",
			strings.Join(missing, "\n  "))
	}
}

func TestDocDrift_MCPToolsInREADME(t *testing.T) {
	readme := readFile(t, filepath.Join(repoRoot(t), "README.md"))

	catalogTools := make(map[string]bool)
	for _, op := range core.Catalog().Operations() {
		catalogTools[op.Name] = true
	}

	reMCPSection := regexp.MustCompile(`(?s)## MCP Tools\n(.*?)(?:\n## |\z)`)
	sectionMatch := reMCPSection.FindStringSubmatch(readme)
	if sectionMatch == nil {
		t.Fatal("cannot find '## MCP Tools' section in README.md")
	}

	reToolInREADME := regexp.MustCompile("`([a-z_]+)`")
	readmeTools := make(map[string]bool)
	for _, m := range reToolInREADME.FindAllStringSubmatch(sectionMatch[1], -1) {
		readmeTools[m[1]] = true
	}

	var missingInREADME []string
	for tool := range catalogTools {
		if !readmeTools[tool] {
			missingInREADME = append(missingInREADME, tool)
		}
	}
	sort.Strings(missingInREADME)

	var missingInCatalog []string
	for tool := range readmeTools {
		if !catalogTools[tool] {
			missingInCatalog = append(missingInCatalog, tool)
		}
	}
	sort.Strings(missingInCatalog)

	if len(missingInREADME) > 0 {
		t.Errorf("operations in the catalog but missing from README:\n  %s",
			strings.Join(missingInREADME, "\n  "))
	}
	if len(missingInCatalog) > 0 {
		t.Errorf("tools listed in README but not in the catalog:\n  %s",
			strings.Join(missingInCatalog, "\n  "))
	}
}
