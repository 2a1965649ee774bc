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

// zfsProvider snapshots a dataset with `zfs snapshot -r`. The snapshot
// is read through the hidden .zfs/snapshot directory when the dataset is
// mounted, and through a private read-only mount otherwise (the latter
// requires root).
type zfsProvider struct {
	dataset string
	run     proc.Runner
	logger  *slog.Logger
}

func newZfsProvider(dataset string, runner proc.Runner, logger *slog.Logger) (Provider, error) {
	if strings.Contains(dataset, "@") || strings.HasPrefix(dataset, "/") {
		return nil, errors.Configf("%q is not a dataset name", dataset)
	}
	return &zfsProvider{dataset: dataset, run: runner, logger: logger}, nil
}

// listFilesystems returns dataset -> mountpoint ("" when unmounted or
// legacy).
func (p *zfsProvider) listFilesystems(ctx context.Context) (map[string]string, error) {
	out, err := p.run.Run(ctx, proc.Command{
		Name: "zfs",
		Args: []string{"list", "-H", "-o", "name,mountpoint", "-t", "filesystem"},
	})
	if err != nil {
		return nil, errors.Snapshot(err, "listing zfs datasets")
	}

	mounts := make(map[string]string)
	for _, line := range strings.Split(string(out.Stdout), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		if strings.HasPrefix(fields[1], "/") {
			mounts[fields[0]] = fields[1]
		} else {
			mounts[fields[0]] = ""
		}
	}
	return mounts, nil
}

func (p *zfsProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	name := NewName(time.Now())
	full := p.dataset + "@" + name

	p.logger.Info("creating zfs snapshot", "snapshot", full)
	if _, err := p.run.Run(ctx, proc.Command{
		Name: "zfs",
		Args: []string{"snapshot", "-r", full},
	}); err != nil {
		return nil, errors.Snapshot(err,
			"creating snapshot (try delegating with zfs-allow snapshot)")
	}

	snap := &Snapshot{
		ID:        name,
		CreatedAt: time.Now(),
		fullName:  full,
	}

	mounts, err := p.listFilesystems(ctx)
	if err != nil {
		p.rollback(ctx, snap)
		return nil, err
	}

	if mp := mounts[p.dataset]; mp != "" {
		snap.Path = filepath.Join(mp, ".zfs", "snapshot", name)
		return snap, nil
	}

	// Dataset is not mounted; expose the snapshot through a private
	// read-only mount.
	if err := p.mount(ctx, snap); err != nil {
		p.rollback(ctx, snap)
		return nil, err
	}
	return snap, nil
}

func (p *zfsProvider) mount(ctx context.Context, snap *Snapshot) error {
	if os.Geteuid() != 0 {
		return errors.Snapshot(
			errors.Newf("dataset %s is not mounted", p.dataset),
			"mounting a snapshot requires root")
	}

	dir, err := os.MkdirTemp("", "cbk-mount-*")
	if err != nil {
		return errors.Snapshot(err, "creating mount directory")
	}

	p.logger.Info("mounting zfs snapshot", "snapshot", snap.fullName, "mountpoint", dir)
	if _, err := p.run.Run(ctx, proc.Command{
		Name: "mount",
		Args: []string{"-t", "zfs", "-o", "ro", snap.fullName, dir},
	}); err != nil {
		_ = os.Remove(dir)
		return errors.Snapshot(err, "mounting snapshot")
	}

	snap.Path = dir
	snap.mountDir = dir
	snap.manual = true
	return nil
}

// rollback destroys a half-created snapshot so that create failures
// never leave state behind.
func (p *zfsProvider) rollback(ctx context.Context, snap *Snapshot) {
	if err := p.Delete(ctx, snap); err != nil {
		p.logger.Error("could not roll back zfs snapshot", "snapshot", snap.fullName, "error", err)
	}
}

func (p *zfsProvider) Delete(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.deleted {
		return nil
	}

	if snap.manual {
		p.logger.Info("unmounting zfs snapshot", "mountpoint", snap.mountDir)
		if _, err := p.run.Run(ctx, proc.Command{
			Name: "umount",
			Args: []string{snap.mountDir},
		}); err != nil {
			return errors.Snapshot(err, "unmounting snapshot")
		}
		_ = os.Remove(snap.mountDir)
		snap.manual = false
	}

	// Idempotent: a snapshot destroyed by hand in the meantime is fine.
	if _, err := p.run.Run(ctx, proc.Command{
		Name: "zfs",
		Args: []string{"list", "-H", "-o", "name", "-t", "snapshot", snap.fullName},
	}); err != nil {
		p.logger.Debug("zfs snapshot already absent", "snapshot", snap.fullName)
		snap.deleted = true
		return nil
	}

	p.logger.Info("destroying zfs snapshot", "snapshot", snap.fullName)
	if _, err := p.run.Run(ctx, proc.Command{
		Name: "zfs",
		Args: []string{"destroy", "-R", snap.fullName},
	}); err != nil {
		return errors.Snapshot(err,
			"destroying snapshot (try delegating with zfs-allow destroy)")
	}
	snap.deleted = true
	return nil
}

func (p *zfsProvider) Leftovers(ctx context.Context) ([]string, error) {
	out, err := p.run.Run(ctx, proc.Command{
		Name: "zfs",
		Args: []string{"list", "-H", "-o", "name", "-t", "snapshot", "-r", p.dataset},
	})
	if err != nil {
		// A dataset without snapshots makes zfs-list unhappy on some
		// platforms; treat it as no leftovers.
		return nil, nil
	}

	marker := p.dataset + "@" + NamePrefix
	var orphans []string
	for _, line := range strings.Split(string(out.Stdout), "\n") {
		name := strings.TrimSpace(line)
		if strings.HasPrefix(name, marker) {
			orphans = append(orphans, name)
		}
	}
	return orphans, nil
}

func (p *zfsProvider) Incremental() bool {
	return true
}
