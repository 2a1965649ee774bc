// Package transfer moves backup payloads to destination backends and
// manages the backup entries already stored there. The concrete backend
// is resolved from the declared destination type.
package transfer

import (
	"context"
	"log/slog"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/proc"
)

// Payload is what gets pushed: a directory tree (snapshot contents) or a
// single file (archive artifact).
type Payload struct {
	Path  string
	IsDir bool
}

// Backend is the destination capability set.
type Backend interface {
	// Push uploads the payload as remoteName under the destination path.
	// A non-zero tool exit or network failure returns an error carrying
	// errors.ErrTransfer; the job layer owns retrying.
	Push(ctx context.Context, payload Payload, remoteName string) error

	// List returns the backup entries whose names carry the given prefix,
	// sorted by timestamp ascending. Names that do not follow the entry
	// naming convention are excluded.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Delete removes one backup entry.
	Delete(ctx context.Context, e Entry) error

	// IncrementalReceive reports whether this backend can receive
	// filesystem-native deltas. None can yet; full payload is the safe
	// default until a receive-side backend negotiates otherwise.
	IncrementalReceive() bool
}

// Deps are the collaborators and program settings a backend needs.
type Deps struct {
	Runner proc.Runner
	Logger *slog.Logger

	// RcloneLogLevel is passed through to rclone's --log-level.
	RcloneLogLevel string

	// Excludes are glob patterns skipped when pushing directory trees.
	Excludes []string
}

// New resolves the backend for a destination spec. Unknown and
// not-yet-implemented kinds fail here, before any snapshot is taken.
func New(ctx context.Context, dst config.DestinationSpec, deps Deps) (Backend, error) {
	switch dst.Kind {
	case config.DestRclone:
		return newRcloneBackend(ctx, dst, deps)
	case config.DestDirectory:
		return newDirectoryBackend(dst.Path, deps.Logger)
	case config.DestZFS, config.DestBtrfs:
		return nil, errors.Configf("destination type %q is not supported yet", dst.Kind)
	default:
		return nil, errors.Configf("unknown destination type %q", dst.Kind)
	}
}
