package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Result is the captured outcome of a single git invocation. Output is trimmed of
// surrounding whitespace before it is returned.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Output joins stdout and stderr so callers can scan everything git printed.
func (r Result) Output() string {
	switch {
	case r.Stdout == "":
		return r.Stderr
	case r.Stderr == "":
		return r.Stdout
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Runner executes git commands. A non-zero exit status is reported through
// Result.ExitCode and never as an error; an error means the command could not be
// run at all (for example the context was cancelled).
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (Result, error)
}

// ShellRunner runs the system git binary.
type ShellRunner struct {
	path string
	env  []string
	log  *slog.Logger
}

// NewShellRunner resolves the git executable (defaults to "git" on PATH) and
// returns a runner bound to it. Resolution happens once, up front, so a missing
// binary fails the run before any command is attempted.
func NewShellRunner(binary string, logger *slog.Logger) (*ShellRunner, error) {
	if strings.TrimSpace(binary) == "" {
		binary = "git"
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("resolve git executable %q: %w", binary, err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &ShellRunner{
		path: path,
		env:  append(os.Environ(), "GIT_TERMINAL_PROMPT=0"),
		log:  logger,
	}, nil
}

// Path returns the resolved git executable.
func (r *ShellRunner) Path() string {
	return r.path
}

func (r *ShellRunner) Run(ctx context.Context, dir string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.Dir = dir
	cmd.Env = r.env
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("running git command", "dir", dir, "args", strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start git %s: %w", strings.Join(args, " "), err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-done
		return Result{}, ctx.Err()
	case waitErr = <-done:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
	}

	result := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Result{}, fmt.Errorf("wait for git %s: %w", strings.Join(args, " "), waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	if result.ExitCode != 0 {
		r.log.Warn("git command exited with non-zero status",
			"args", strings.Join(args, " "),
			"exit_code", result.ExitCode,
			"stderr", result.Stderr)
	}
	r.log.Debug("git command finished", "args", strings.Join(args, " "), "exit_code", result.ExitCode, "stdout", result.Stdout)

	return result, nil
}

// CommandError reports a git command that exited with an unexpected status.
type CommandError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Stderr
	if msg == "" {
		msg = e.Stdout
	}
	return fmt.Sprintf("git %s: exit code %d: %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

func newCommandError(args []string, res Result) *CommandError {
	return &CommandError{
		Args:     append([]string(nil), args...),
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}
