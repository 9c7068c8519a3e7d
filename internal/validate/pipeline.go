package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/toolhub/ghapp-mcp/internal/config"
	"github.com/toolhub/ghapp-mcp/internal/telemetry"
)

const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// StepReport is the outcome of one shell step.
type StepReport struct {
	Name       string `json:"name"`
	Command    string `json:"command"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Output     string `json:"output,omitempty"`
}

type ComponentReport struct {
	Dir    string       `json:"dir"`
	Status string       `json:"status"`
	Steps  []StepReport `json:"steps"`
}

type Report struct {
	Components []ComponentReport `json:"components"`
}

// Failed returns the dirs of components with a failing step.
func (r Report) Failed() []string {
	var out []string
	for _, c := range r.Components {
		if c.Status == StatusFailed {
			out = append(out, c.Dir)
		}
	}
	return out
}

// Pipeline runs per-component lint/build/test steps for the top-level
// directories touched by a commit.
type Pipeline struct {
	Components  []config.Component
	StepTimeout time.Duration
	// WorkDir is the repository root; step commands run in WorkDir/<dir>.
	WorkDir string
	Logger  *slog.Logger
}

// Run validates every configured component with at least one changed file.
// Within a component the first failing step skips the rest; other components
// still run. The error joins one entry per failed component.
func (p *Pipeline) Run(ctx context.Context, files []string) (Report, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := p.StepTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	var report Report
	if len(files) == 0 {
		logger.Info("no files changed in commit")
		return report, nil
	}

	touched := topLevelDirs(files)
	var errs []error
	for _, comp := range p.Components {
		if !touched[strings.Trim(filepath.ToSlash(comp.Dir), "/")] {
			continue
		}
		logger.Info("validating component", "component", comp.Dir)
		cr, err := p.runComponent(ctx, logger, comp, timeout)
		report.Components = append(report.Components, cr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", comp.Dir, err))
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		logger.Error("validation failed", "components", report.Failed(), "err", err)
		return report, err
	}
	if len(report.Components) == 0 {
		logger.Info("no configured component changed")
	} else {
		logger.Info("all validations passed")
	}
	return report, nil
}

func (p *Pipeline) runComponent(ctx context.Context, logger *slog.Logger, comp config.Component, timeout time.Duration) (ComponentReport, error) {
	cr := ComponentReport{Dir: comp.Dir, Status: StatusPassed, Steps: make([]StepReport, 0, len(comp.Steps))}
	dir := filepath.Join(p.WorkDir, comp.Dir)

	var failure error
	for _, step := range comp.Steps {
		if failure != nil {
			cr.Steps = append(cr.Steps, StepReport{Name: step.Name, Command: step.Command, Status: StatusSkipped})
			telemetry.IncValidationStep(comp.Dir, StatusSkipped)
			continue
		}

		sr, err := runStep(ctx, dir, step, timeout)
		cr.Steps = append(cr.Steps, sr)
		telemetry.IncValidationStep(comp.Dir, sr.Status)
		if err != nil {
			logger.Error("step failed",
				"component", comp.Dir,
				"step", step.Name,
				"exit_code", sr.ExitCode,
				"duration_ms", sr.DurationMS,
				"err", err,
			)
			cr.Status = StatusFailed
			failure = fmt.Errorf("%s: %w", step.Name, err)
			continue
		}
		logger.Info("step passed", "component", comp.Dir, "step", step.Name, "duration_ms", sr.DurationMS)
	}
	return cr, failure
}

func runStep(ctx context.Context, dir string, step config.Step, timeout time.Duration) (StepReport, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", step.Command)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	sr := StepReport{
		Name:       step.Name,
		Command:    step.Command,
		Status:     StatusPassed,
		DurationMS: time.Since(start).Milliseconds(),
		Output:     strings.TrimSpace(out.String()),
	}
	if runErr == nil {
		return sr, nil
	}

	sr.Status = StatusFailed
	sr.ExitCode = -1
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return sr, fmt.Errorf("timed out after %s", timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		sr.ExitCode = exitErr.ExitCode()
		return sr, fmt.Errorf("exit code %d", sr.ExitCode)
	}
	return sr, runErr
}

func topLevelDirs(files []string) map[string]bool {
	dirs := make(map[string]bool)
	for _, f := range files {
		f = filepath.ToSlash(filepath.Clean(f))
		if i := strings.Index(f, "/"); i > 0 {
			dirs[f[:i]] = true
		}
	}
	return dirs
}
