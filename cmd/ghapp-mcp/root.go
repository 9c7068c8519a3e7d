package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolhub/ghapp-mcp/internal/config"
	"github.com/toolhub/ghapp-mcp/internal/core"
	"github.com/toolhub/ghapp-mcp/internal/github"
	httpsvr "github.com/toolhub/ghapp-mcp/internal/http"
	mcpsvr "github.com/toolhub/ghapp-mcp/internal/mcp"
)

func newRootCmd() *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd, configPath)
	}

	root := &cobra.Command{
		Use:   "ghapp-mcp",
		Short: "MCP server that acts on GitHub as a GitHub App installation",
		Long: `ghapp-mcp exposes pull request, issue, repository and review thread
operations as MCP tools. It authenticates as a GitHub App installation and
speaks newline-delimited JSON-RPC on stdio, or on TCP when mcp.listen is set.

Configuration comes from defaults, an optional --config file (TOML or YAML)
and the environment, in increasing precedence.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML or YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (default command)",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})
	root.AddCommand(newValidateCmd(&configPath))
	return root
}

func versionString() string {
	v := version
	if v == "" {
		v = "dev"
	}
	if gitCommit != "" {
		v += " (" + gitCommit + ")"
	}
	return v
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	creds, err := cfg.Credentials()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	broker, err := github.NewBroker(github.AppIdentity{
		AppID:          creds.AppID,
		InstallationID: creds.InstallationID,
		PrivateKey:     creds.PrivateKeyPEM,
	}, github.BrokerOptions{
		APIURL:        cfg.GitHub.APIURL,
		HTTPClient:    &http.Client{Timeout: cfg.GitHub.Timeout},
		RefreshMargin: cfg.Token.RefreshMargin,
		Logger:        logger,
	})
	if err != nil {
		return &config.Error{Key: "GITHUB_APP_PRIVATE_KEY", Reason: err.Error()}
	}
	client, err := github.NewClient(broker, cfg.GitHub.APIURL)
	if err != nil {
		return &config.Error{Key: "GITHUB_API_URL", Reason: err.Error()}
	}
	graph := github.NewGraphQL(broker, cfg.GitHub.GraphQLEndpoint())

	dispatcher := core.NewDispatcher(client, graph, core.DispatcherOptions{
		Policy:      core.NewPolicy(cfg.Policy.Repos, cfg.Policy.Operations),
		Logger:      logger,
		NoReplyHost: cfg.GitHub.NoReplyHost(),
	})

	logger.Info("effective config",
		"api_url", cfg.GitHub.APIURL,
		"graphql_url", cfg.GitHub.GraphQLEndpoint(),
		"app_id", creds.AppID,
		"installation_id", creds.InstallationID,
		"mcp_listen", cfg.MCP.Listen,
		"http_listen", cfg.HTTP.Listen,
		"repo_allowlist", cfg.Policy.Repos,
		"operation_allowlist", cfg.Policy.Operations,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	var opsServer *httpsvr.Server
	if cfg.HTTP.Listen != "" {
		opsServer = httpsvr.NewServer(cfg.HTTP.Listen, dispatcher, logger, httpsvr.BuildInfo{
			Version:   version,
			GitCommit: gitCommit,
			BuildTime: buildTime,
		})
		go func() {
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	mcpServer := mcpsvr.NewServer(dispatcher, versionString(), logger)
	if cfg.MCP.Listen != "" {
		go func() { errCh <- mcpServer.ListenAndServe(ctx, cfg.MCP.Listen) }()
	} else {
		logger.Info("GitHub App MCP Server running on stdio")
		go func() { errCh <- mcpServer.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout()) }()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("server error", "err", serveErr)
		} else {
			logger.Info("input closed, shutting down")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if opsServer != nil {
		opsServer.Shutdown(shutdownCtx)
	}
	mcpServer.Shutdown(shutdownCtx)
	logger.Info("shutdown complete")
	return serveErr
}
