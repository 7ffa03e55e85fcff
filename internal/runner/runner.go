// Package runner executes external commands on behalf of installer strategies.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited with code zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Output returns stdout followed by stderr, trimmed.
func (r *Result) Output() string {
	return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
}

// Runner runs a command and reports its exit code and output. A non-zero exit
// is not an error; err is set only when the command could not be run at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner runs commands as host processes.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- argv is built by installer strategies
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		result.ExitCode = -1
		return result, fmt.Errorf("run %s: %w", name, ctx.Err())
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("run %s: %w", name, err)
	}

	r.logger.Debug("command finished",
		"command", name,
		"args", args,
		"exit_code", result.ExitCode,
		"duration", time.Since(start),
	)
	return result, nil
}
