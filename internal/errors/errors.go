package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Exit codes returned to the operating system.
const (
	// ExitSuccess indicates every backup definition completed successfully.
	ExitSuccess = 0

	// ExitUser indicates a user-related error (bad flags, bad configuration).
	ExitUser = 1

	// ExitSystem indicates a runtime failure (subprocess, I/O, at least one
	// failed backup job).
	ExitSystem = 2
)

// Sentinel errors forming the failure taxonomy. Errors produced by the
// engine are marked with exactly one of these so callers can classify a
// failure with errors.Is regardless of how deeply it was wrapped.
var (
	// ErrConfig marks a bad or missing backup definition. Raised before any
	// destructive action; aborts the whole run.
	ErrConfig = errors.New("invalid configuration")

	// ErrSnapshot marks a snapshot create or delete failure.
	ErrSnapshot = errors.New("snapshot operation failed")

	// ErrTransfer marks a push, list, or delete failure against a
	// destination backend. Pushes are retried a bounded number of times
	// before this surfaces.
	ErrTransfer = errors.New("transfer failed")

	// ErrArchive marks a packaging failure. Never retried: a missing or
	// broken archiver binary is an environment problem.
	ErrArchive = errors.New("archive creation failed")

	// ErrRetention marks a delete failure during cleanup. Non-fatal:
	// failures accumulate and the pass completes for the remaining entries.
	ErrRetention = errors.New("retention cleanup failed")
)

// Re-exports from cockroachdb/errors so most packages only need this
// import for error construction, wrapping, and classification.
var (
	New   = errors.New
	Newf  = errors.Newf
	Wrap  = errors.Wrap
	Wrapf = errors.Wrapf
	Is    = errors.Is
	As    = errors.As
	Mark  = errors.Mark
	Join  = errors.Join
)

// Config wraps err with context and marks it as a configuration error.
func Config(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrConfig)
}

// Configf creates a new configuration error.
func Configf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfig)
}

// Snapshot wraps err with context and marks it as a snapshot error.
func Snapshot(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrSnapshot)
}

// Transfer wraps err with context and marks it as a transfer error.
func Transfer(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrTransfer)
}

// Archive wraps err with context and marks it as an archive error.
func Archive(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrArchive)
}

// Retention wraps err with context and marks it as a retention error.
func Retention(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrRetention)
}

// ExitError wraps an error with a process exit code and an optional
// suggestion for the user. It supports unwrapping via errors.Unwrap.
type ExitError struct {
	// Err is the underlying error that caused the exit.
	Err error

	// Code is the exit code to return to the operating system.
	Code int

	// Suggestion is an optional actionable hint printed after the error.
	Suggestion string
}

// NewExitError creates an ExitError with the given underlying error and code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{Err: err, Code: ExitUser, Suggestion: suggestion}
}

// NewSystemError creates an ExitError with ExitSystem code and a suggestion.
func NewSystemError(err error, suggestion string) *ExitError {
	return &ExitError{Err: err, Code: ExitSystem, Suggestion: suggestion}
}

// Error returns the message of the underlying error, or a generic message
// carrying the exit code when there is none.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}
