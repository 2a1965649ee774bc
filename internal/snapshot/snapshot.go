// Package snapshot provides atomic point-in-time views of backup
// sources. Each supported filesystem (plain directory, zfs, btrfs)
// implements the Provider capability set; the concrete provider is
// resolved from the declared source type.
package snapshot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/proc"
)

// NamePrefix marks every snapshot this tool creates. A snapshot carrying
// it that survives past its run is an orphan from a crashed run and is
// reported, never silently adopted or deleted.
const NamePrefix = "cbk_"

// nameTimeFormat is the compact UTC timestamp embedded in snapshot names.
const nameTimeFormat = "20060102T150405Z"

// Snapshot is an ephemeral point-in-time view, owned exclusively by the
// job that created it for the duration of one run.
type Snapshot struct {
	// ID is the provider-level snapshot name (zfs snapshot suffix, btrfs
	// snapshot directory name, or the source path for plain directories).
	ID string

	// Path is where the snapshot contents can be read.
	Path string

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time

	// Provider-private state.
	fullName string // zfs: dataset@name
	mountDir string // zfs: private mountpoint when manually mounted
	manual   bool   // zfs: snapshot was mounted by us
	deleted  bool
}

// Provider creates and destroys snapshots of one configured source.
type Provider interface {
	// Snapshot creates a snapshot. Either a usable snapshot exists on
	// return or none does: partial state is rolled back before the error
	// surfaces.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Delete destroys the snapshot. It is idempotent: deleting an
	// already-absent snapshot is logged, not an error.
	Delete(ctx context.Context, snap *Snapshot) error

	// Leftovers lists snapshot names matching NamePrefix that a previous
	// run failed to clean up.
	Leftovers(ctx context.Context) ([]string, error)

	// Incremental reports whether this provider can compute deltas
	// between two of its snapshots. It is a capability only: the fast
	// path additionally requires a destination that can receive deltas.
	Incremental() bool
}

// NewName returns a fresh snapshot name: prefix, compact UTC timestamp,
// random suffix. Uniqueness among concurrent snapshots of the same
// source comes from the suffix.
func NewName(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return NamePrefix + now.UTC().Format(nameTimeFormat) + "_" + suffix
}

// New resolves the provider for a source spec. An unknown kind is a
// configuration error, caught before any snapshot is taken.
func New(spec config.SourceSpec, runner proc.Runner, logger *slog.Logger) (Provider, error) {
	switch spec.Kind {
	case config.SourceDirectory:
		return newDirectoryProvider(spec.Path, logger)
	case config.SourceZFS:
		return newZfsProvider(spec.Path, runner, logger)
	case config.SourceBtrfs:
		return newBtrfsProvider(spec.Path, runner, logger)
	default:
		return nil, errors.Configf("unknown source type %q", spec.Kind)
	}
}
