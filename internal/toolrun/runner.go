package toolrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/boardforge/board-imager/internal/logger"
)

// Runner is the narrow external-tool invocation surface every call site
// depends on, easing substitution with fakes in tests.
type Runner interface {
	// Run executes the named tool and waits for completion.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes the named tool and returns its standard output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// LookPath resolves a tool name against the environment.
	LookPath(name string) (string, error)
}

// ToolPrerequisiteError reports a missing external tool or input file,
// raised before any destructive operation begins.
type ToolPrerequisiteError struct {
	// Tool is the missing program or file.
	Tool string
	// Err is the underlying lookup error.
	Err error
}

// Error implements the error interface.
func (e *ToolPrerequisiteError) Error() string {
	return fmt.Sprintf("required tool %q is not available: %v", e.Tool, e.Err)
}

// Unwrap exposes the lookup error.
func (e *ToolPrerequisiteError) Unwrap() error {
	return e.Err
}

// ToolFailure reports a tool invocation that started but exited non-zero.
type ToolFailure struct {
	// Tool is the program that failed.
	Tool string
	// ExitCode is the tool's exit status (-1 when it did not run).
	ExitCode int
	// Stderr is the captured diagnostic output, trimmed.
	Stderr string
	// Err is the underlying exec error.
	Err error
}

// Error implements the error interface.
func (e *ToolFailure) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, e.Stderr)
	}

	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

// Unwrap exposes the exec error.
func (e *ToolFailure) Unwrap() error {
	return e.Err
}

// ExecRunner runs tools via os/exec with stderr captured into errors.
type ExecRunner struct{}

// NewExecRunner creates the os/exec backed runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	logger.DebugKV(ctx, "Running external tool", "tool", name, "args", strings.Join(args, " "))

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return wrapExecError(name, &stderr, err)
	}

	return nil
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	logger.DebugKV(ctx, "Running external tool", "tool", name, "args", strings.Join(args, " "))

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, wrapExecError(name, &stderr, err)
	}

	return out, nil
}

// LookPath implements Runner.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// wrapExecError converts an exec error into a ToolFailure with exit status
// and captured stderr.
func wrapExecError(name string, stderr *bytes.Buffer, err error) error {
	exitCode := -1

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return &ToolFailure{
		Tool:     name,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr.String()),
		Err:      err,
	}
}

// CheckPrerequisites verifies every named tool resolves before any
// destructive operation begins (check-then-act).
func CheckPrerequisites(r Runner, tools ...string) error {
	for _, tool := range tools {
		if _, err := r.LookPath(tool); err != nil {
			return &ToolPrerequisiteError{Tool: tool, Err: err}
		}
	}

	return nil
}
