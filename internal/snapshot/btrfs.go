package snapshot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/proc"
)

// btrfsProvider snapshots a subvolume with `btrfs subvolume snapshot -r`.
// The read-only snapshot is created inside the subvolume itself, named
// with NamePrefix so a crashed run's leftovers are recognizable.
type btrfsProvider struct {
	path   string
	run    proc.Runner
	logger *slog.Logger
}

func newBtrfsProvider(path string, runner proc.Runner, logger *slog.Logger) (Provider, error) {
	if !filepath.IsAbs(path) {
		return nil, errors.Configf("subvolume path %q is not absolute", path)
	}
	return &btrfsProvider{path: path, run: runner, logger: logger}, nil
}

func (p *btrfsProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	name := NewName(time.Now())
	snapPath := filepath.Join(p.path, name)

	p.logger.Info("creating btrfs snapshot", "snapshot", snapPath)
	if _, err := p.run.Run(ctx, proc.Command{
		Name: "btrfs",
		Args: []string{"subvolume", "snapshot", "-r", p.path, snapPath},
	}); err != nil {
		return nil, errors.Snapshot(err, "creating snapshot (check permissions)")
	}

	return &Snapshot{
		ID:        name,
		Path:      snapPath,
		CreatedAt: time.Now(),
	}, nil
}

func (p *btrfsProvider) Delete(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.deleted {
		return nil
	}

	if _, err := os.Stat(snap.Path); os.IsNotExist(err) {
		p.logger.Debug("btrfs snapshot already absent", "snapshot", snap.Path)
		snap.deleted = true
		return nil
	}

	p.logger.Info("deleting btrfs snapshot", "snapshot", snap.Path)
	if _, err := p.run.Run(ctx, proc.Command{
		Name: "btrfs",
		Args: []string{"subvolume", "delete", snap.Path},
	}); err != nil {
		return errors.Snapshot(err, "deleting snapshot")
	}
	snap.deleted = true
	return nil
}

func (p *btrfsProvider) Leftovers(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.path)
	if err != nil {
		return nil, errors.Snapshot(err, "reading subvolume")
	}

	var orphans []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), NamePrefix) {
			orphans = append(orphans, filepath.Join(p.path, e.Name()))
		}
	}
	return orphans, nil
}

func (p *btrfsProvider) Incremental() bool {
	return true
}
