package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Runner runs an external program to completion.
type Runner interface {
	// Run executes name with args and returns everything the program wrote
	// to stdout. A non-zero exit yields a *ProcessError. If ctx ends first the
	// process is killed and the returned error wraps ctx.Err().
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Compile-time check that ExecRunner implements Runner.
var _ Runner = (*ExecRunner)(nil)

// ExecRunner implements Runner with os/exec.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.Run.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 - binary paths come from configuration, not user input
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		return nil, &ProcessError{
			Name:   name,
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return stdout.Bytes(), nil
}

// ProcessError represents a failed external process run, including the
// captured stderr output.
type ProcessError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s error: %v\nargs: %v\nstderr: %s", e.Name, e.Err, e.Args, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit status, or -1 when the process did not
// exit normally.
func (e *ProcessError) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
