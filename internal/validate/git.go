package validate

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// IsCommitEvent reports whether a finished tool call was a shell command
// that made a git commit.
func IsCommitEvent(tool, command string) bool {
	return tool == "bash" && strings.Contains(command, "git commit")
}

// ChangedFiles lists paths changed between two revisions.
func ChangedFiles(ctx context.Context, workdir, from, to string) ([]string, error) {
	out, err := runGitOutput(ctx, workdir, "diff", "--name-only", from, to)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func runGitOutput(ctx context.Context, workdir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", workdir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
