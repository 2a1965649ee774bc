// Package proc runs the external tools crossbackup depends on (zfs,
// btrfs, rclone, the archivers) as bounded synchronous subprocesses.
package proc

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hyunjaekim/crossbackup/internal/errors"
)

// DefaultTimeout bounds a subprocess call when the Command does not set
// its own. A call that never returns is treated as failed, not hung.
const DefaultTimeout = 4 * time.Hour

// Command describes one subprocess invocation.
type Command struct {
	// Name is the binary name or path.
	Name string

	// Args are the arguments, excluding the binary name.
	Args []string

	// Dir is the working directory. Empty means inherit.
	Dir string

	// Stream forwards the child's stdout/stderr to the parent instead of
	// capturing them. Used for tools whose progress output is the user
	// interface (rclone transfers).
	Stream bool

	// Timeout bounds this call. Zero means the runner's default.
	Timeout time.Duration
}

// Output holds the captured output of a completed subprocess.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// StderrString returns the trimmed captured stderr.
func (o Output) StderrString() string {
	return strings.TrimSpace(string(o.Stderr))
}

// Runner executes subprocesses. The single non-test implementation is
// ExecRunner; tests substitute a Fake.
type Runner interface {
	// Run executes the command and waits for it. A non-zero exit status,
	// a start failure, or a timeout all return a non-nil error carrying
	// the captured stderr.
	Run(ctx context.Context, cmd Command) (Output, error)

	// LookPath searches for an executable in the search path.
	LookPath(name string) (string, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRunner creates an ExecRunner logging each invocation at Debug level.
func NewRunner(logger *slog.Logger, opts ...Option) *ExecRunner {
	r := &ExecRunner{
		logger:  logger,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	if cmd.Stream {
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	if r.logger != nil {
		r.logger.Debug("running command", "bin", cmd.Name, "args", strings.Join(cmd.Args, " "))
	}

	err := c.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return out, errors.Wrapf(runCtx.Err(), "%s timed out after %s", cmd.Name, timeout)
		}
		if msg := out.StderrString(); msg != "" {
			return out, errors.Wrapf(err, "%s: %s", cmd.Name, msg)
		}
		return out, errors.Wrapf(err, "%s", cmd.Name)
	}
	return out, nil
}

// LookPath implements Runner via exec.LookPath.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
