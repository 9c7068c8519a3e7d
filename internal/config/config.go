// Package config loads process configuration from built-in defaults, an
// optional TOML or YAML file and the environment, in that order of
// precedence (environment wins).
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const DefaultAPIURL = "https://api.github.com/"

// Config is the full process configuration.
type Config struct {
	App      AppConfig      `koanf:"app"`
	GitHub   GitHubConfig   `koanf:"github"`
	Token    TokenConfig    `koanf:"token"`
	Log      LogConfig      `koanf:"log"`
	MCP      MCPConfig      `koanf:"mcp"`
	HTTP     HTTPConfig     `koanf:"http"`
	Policy   PolicyConfig   `koanf:"policy"`
	Validate ValidateConfig `koanf:"validate"`
}

// AppConfig holds the raw GitHub App identity material. Use
// Config.Credentials to resolve and check it.
type AppConfig struct {
	ID             string `koanf:"id"`
	InstallationID string `koanf:"installation_id"`
	PrivateKey     string `koanf:"private_key"`
	PrivateKeyPath string `koanf:"private_key_path"`
}

type GitHubConfig struct {
	APIURL     string        `koanf:"api_url"`
	GraphQLURL string        `koanf:"graphql_url"`
	Host       string        `koanf:"host"`
	Timeout    time.Duration `koanf:"timeout"`
}

type TokenConfig struct {
	RefreshMargin time.Duration `koanf:"refresh_margin"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type MCPConfig struct {
	Listen string `koanf:"listen"`
}

type HTTPConfig struct {
	Listen string `koanf:"listen"`
}

// PolicyConfig restricts which repositories and operations may be used.
// Empty lists allow everything.
type PolicyConfig struct {
	Repos      string `koanf:"repos"`
	Operations string `koanf:"operations"`
}

type ValidateConfig struct {
	StepTimeout time.Duration `koanf:"step_timeout"`
	Components  []Component   `koanf:"components"`
}

// Component is one top-level directory with its ordered validation steps.
type Component struct {
	Dir   string `koanf:"dir"`
	Steps []Step `koanf:"steps"`
}

type Step struct {
	Name    string `koanf:"name"`
	Command string `koanf:"command"`
}

// envKeys maps the supported environment variables onto config keys.
var envKeys = map[string]string{
	"GITHUB_APP_ID":               "app.id",
	"GITHUB_APP_INSTALLATION_ID":  "app.installation_id",
	"GITHUB_APP_PRIVATE_KEY":      "app.private_key",
	"GITHUB_APP_PRIVATE_KEY_PATH": "app.private_key_path",
	"GITHUB_API_URL":              "github.api_url",
	"GITHUB_GRAPHQL_URL":          "github.graphql_url",
	"GITHUB_HOST":                 "github.host",
	"GITHUB_HTTP_TIMEOUT":         "github.timeout",
	"GHAPP_TOKEN_REFRESH_MARGIN":  "token.refresh_margin",
	"GHAPP_LOG_LEVEL":             "log.level",
	"GHAPP_LOG_FORMAT":            "log.format",
	"GHAPP_MCP_LISTEN":            "mcp.listen",
	"GHAPP_HTTP_LISTEN":           "http.listen",
	"GHAPP_REPO_ALLOWLIST":        "policy.repos",
	"GHAPP_OPERATION_ALLOWLIST":   "policy.operations",
	"GHAPP_VALIDATE_STEP_TIMEOUT": "validate.step_timeout",
}

// EnvVars returns the environment variable names Load understands.
func EnvVars() []string {
	out := make([]string, 0, len(envKeys))
	for k := range envKeys {
		out = append(out, k)
	}
	return out
}

func defaults() map[string]any {
	return map[string]any{
		"github.api_url":        DefaultAPIURL,
		"github.timeout":        "30s",
		"token.refresh_margin":  "1m",
		"log.level":             "info",
		"log.format":            "json",
		"validate.step_timeout": "10m",
	}
}

// Load builds the configuration. configPath may be empty. It does not check
// the GitHub App identity; call Credentials for that.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		parser, err := parserFor(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(configPath), parser); err != nil {
			return nil, &Error{Key: "config", Reason: fmt.Sprintf("load %s: %v", configPath, err)}
		}
	}

	// Empty variables count as unset so they never clobber file values.
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return envKeys[key], value
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &Error{Key: "config", Reason: err.Error()}
	}
	if len(cfg.Validate.Components) == 0 {
		cfg.Validate.Components = DefaultComponents()
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, &Error{Key: "config", Reason: fmt.Sprintf("unsupported config file extension %q (want .toml, .yaml or .yml)", filepath.Ext(path))}
	}
}

// Check checks everything except the App identity.
func (c *Config) Check() error {
	u, err := url.Parse(c.GitHub.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &Error{Key: "GITHUB_API_URL", Reason: fmt.Sprintf("invalid url %q", c.GitHub.APIURL)}
	}
	if c.GitHub.Timeout <= 0 {
		return &Error{Key: "GITHUB_HTTP_TIMEOUT", Reason: "must be positive"}
	}
	if c.Token.RefreshMargin < 0 {
		return &Error{Key: "GHAPP_TOKEN_REFRESH_MARGIN", Reason: "must not be negative"}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return &Error{Key: "GHAPP_LOG_LEVEL", Reason: err.Error()}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return &Error{Key: "GHAPP_LOG_FORMAT", Reason: fmt.Sprintf("unknown format %q (want json or text)", c.Log.Format)}
	}
	for i, comp := range c.Validate.Components {
		if strings.TrimSpace(comp.Dir) == "" {
			return &Error{Key: "validate.components", Reason: fmt.Sprintf("component %d has no dir", i)}
		}
		for j, step := range comp.Steps {
			if strings.TrimSpace(step.Command) == "" {
				return &Error{Key: "validate.components", Reason: fmt.Sprintf("component %q step %d has no command", comp.Dir, j)}
			}
		}
	}
	return nil
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// NoReplyHost is the host used for bot no-reply email addresses.
func (g GitHubConfig) NoReplyHost() string {
	if h := strings.TrimSpace(g.Host); h != "" {
		return h
	}
	u, err := url.Parse(g.APIURL)
	if err != nil || u.Hostname() == "" || u.Hostname() == "api.github.com" {
		return "github.com"
	}
	return u.Hostname()
}

// GraphQLEndpoint returns the configured GraphQL URL or derives it from the
// REST base URL (api.github.com/graphql, or <host>/api/graphql on GHES).
func (g GitHubConfig) GraphQLEndpoint() string {
	if v := strings.TrimSpace(g.GraphQLURL); v != "" {
		return v
	}
	base := strings.TrimSuffix(g.APIURL, "/")
	if strings.HasSuffix(base, "/api/v3") {
		return strings.TrimSuffix(base, "/v3") + "/graphql"
	}
	return base + "/graphql"
}

// DefaultComponents is the mobile, api and infra layout used when no
// components are configured.
func DefaultComponents() []Component {
	npm := func(dir string) Component {
		return Component{Dir: dir, Steps: []Step{
			{Name: "lint", Command: "npm run lint"},
			{Name: "build", Command: "npm run build"},
			{Name: "test", Command: "npm test"},
		}}
	}
	return []Component{
		npm("mobile"),
		npm("api"),
		{Dir: "infra", Steps: []Step{
			{Name: "terraform validate", Command: "terraform validate"},
			{Name: "terraform plan", Command: "terraform plan -out=tfplan"},
		}},
	}
}
