package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolhub/ghapp-mcp/internal/config"
	"github.com/toolhub/ghapp-mcp/internal/validate"
)

type validateOptions struct {
	from, to  string
	workdir   string
	tool      string
	command   string
	logFormat string
	json      bool
}

func newValidateCmd(configPath *string) *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Run lint, build and test for components changed by a commit",
		Long: `Validate runs the configured steps of every component (top-level
directory) with changed files. Files default to those changed between --from
and --to. When --tool and --command describe a finished tool call, validation
only runs if that call made a git commit.

Example:
  ghapp-mcp validate
  ghapp-mcp validate --tool bash --command 'git commit -m "fix"'
  ghapp-mcp validate api/main.go infra/main.tf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, *configPath, opts, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.from, "from", "HEAD~1", "base revision for changed files")
	f.StringVar(&opts.to, "to", "HEAD", "target revision for changed files")
	f.StringVar(&opts.workdir, "workdir", ".", "repository root")
	f.StringVar(&opts.tool, "tool", "", "name of the tool call that just finished")
	f.StringVar(&opts.command, "command", "", "command of the tool call that just finished")
	f.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	f.BoolVar(&opts.json, "json", false, "print the report as JSON on stdout")
	return cmd
}

func runValidate(cmd *cobra.Command, configPath string, opts validateOptions, files []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logCfg := cfg.Log
	logCfg.Format = opts.logFormat
	logger, err := newLogger(logCfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("tool") || flags.Changed("command") {
		if !validate.IsCommitEvent(opts.tool, opts.command) {
			logger.Debug("not a commit, skipping validation", "tool", opts.tool)
			return nil
		}
		logger.Info("commit detected, running validation")
	}

	ctx := cmd.Context()
	if len(files) == 0 {
		files, err = validate.ChangedFiles(ctx, opts.workdir, opts.from, opts.to)
		if err != nil {
			return err
		}
	}

	p := &validate.Pipeline{
		Components:  cfg.Validate.Components,
		StepTimeout: cfg.Validate.StepTimeout,
		WorkDir:     opts.workdir,
		Logger:      logger,
	}
	report, runErr := p.Run(ctx, files)

	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("validation failed: %w", runErr)
	}
	return nil
}
