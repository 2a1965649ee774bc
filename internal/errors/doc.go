// Package errors provides error handling conventions for crossbackup.
//
// It defines the failure taxonomy used by the backup engine, an ExitError
// type for CLI exit code handling, and re-exports the construction and
// classification helpers of github.com/cockroachdb/errors.
//
// # Taxonomy
//
// Every error produced by the engine is marked with exactly one sentinel
// so callers can classify it with [Is] no matter how deeply it was
// wrapped:
//
//	if errors.Is(err, errors.ErrTransfer) {
//	    // push failed after all retries
//	}
//
// The sentinels and their propagation rules:
//
//   - ErrConfig: bad definition, aborts the whole run before any
//     destructive action
//   - ErrSnapshot, ErrTransfer, ErrArchive: abort only the failing job;
//     the runner proceeds with the next definition
//   - ErrRetention: accumulated per entry during --clean; the pass
//     completes before the partial result is reported
//
// # Exit codes
//
//   - ExitSuccess (0): every definition succeeded
//   - ExitUser (1): invalid input or configuration
//   - ExitSystem (2): at least one job or cleanup pass failed
package errors
