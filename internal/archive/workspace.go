package archive

import (
	"io/fs"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/hyunjaekim/crossbackup/internal/errors"
)

// diskFree reports the bytes available to unprivileged users on the
// filesystem holding path. Overridable for tests.
var diskFree = func(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// pickWorkspace returns the first candidate workspace with enough free
// space to stage an artifact of the payload's size.
func (a *Archiver) pickWorkspace(srcDir string) (string, error) {
	size, err := payloadSize(srcDir)
	if err != nil {
		return "", errors.Archive(err, "sizing payload")
	}

	for _, ws := range a.deps.Workspaces {
		free, err := diskFree(ws)
		if err != nil {
			a.deps.Logger.Debug("skipping workspace", "workspace", ws, "error", err)
			continue
		}
		if free > size {
			a.deps.Logger.Debug("using archive workspace", "workspace", ws)
			return ws, nil
		}
	}
	return "", errors.Archive(
		errors.Newf("payload needs %d bytes", size),
		"no workspace with enough free space")
}

// payloadSize sums the regular files under dir. The compressed artifact
// is assumed to fit in that much space.
func payloadSize(dir string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += uint64(info.Size())
		return nil
	})
	return total, err
}
