package transfer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hyunjaekim/crossbackup/internal/errors"
)

// directoryBackend stores backups under a local destination root, one
// entry per subdirectory or artifact file.
type directoryBackend struct {
	root   string
	logger *slog.Logger
}

func newDirectoryBackend(root string, logger *slog.Logger) (Backend, error) {
	if !filepath.IsAbs(root) {
		return nil, errors.Configf("destination path %q is not absolute", root)
	}
	return &directoryBackend{root: root, logger: logger}, nil
}

func (b *directoryBackend) Push(ctx context.Context, payload Payload, remoteName string) error {
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return errors.Transfer(err, "creating destination root")
	}

	target := filepath.Join(b.root, remoteName)
	b.logger.Info("copying backup", "target", target)

	var err error
	if payload.IsDir {
		if err = os.MkdirAll(target, 0o755); err == nil {
			err = copyTree(ctx, payload.Path, target)
		}
	} else {
		err = copyFile(payload.Path, target)
	}
	if err != nil {
		// Leave no partial entry behind.
		_ = os.RemoveAll(target)
		return errors.Transfer(err, "copying backup")
	}
	return nil
}

func (b *directoryBackend) List(_ context.Context, prefix string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(b.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Transfer(err, "reading destination")
	}

	var entries []Entry
	for _, e := range dirEntries {
		ts, ok := ParseEntryName(prefix, e.Name())
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Name:      e.Name(),
			Prefix:    prefix,
			Timestamp: ts,
			IsDir:     e.IsDir(),
		})
	}
	sortEntries(entries)
	return entries, nil
}

func (b *directoryBackend) Delete(_ context.Context, e Entry) error {
	b.logger.Info("deleting backup", "entry", e.Name)
	if err := os.RemoveAll(filepath.Join(b.root, e.Name)); err != nil {
		return errors.Transfer(err, "deleting backup")
	}
	return nil
}

func (b *directoryBackend) IncrementalReceive() bool {
	return false
}

// copyTree recursively copies src into dst, preserving file modes and
// re-creating symlinks. It checks ctx between entries so a cancelled run
// stops promptly.
func copyTree(ctx context.Context, src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, "reading %s", src)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			link, err := os.Readlink(srcPath)
			if err != nil {
				return errors.Wrapf(err, "reading symlink %s", srcPath)
			}
			if err := os.Symlink(link, dstPath); err != nil {
				return errors.Wrapf(err, "creating symlink %s", dstPath)
			}
		case entry.IsDir():
			info, err := entry.Info()
			if err != nil {
				return errors.Wrapf(err, "stating %s", srcPath)
			}
			if err := os.MkdirAll(dstPath, info.Mode().Perm()); err != nil {
				return errors.Wrapf(err, "creating %s", dstPath)
			}
			if err := copyTree(ctx, srcPath, dstPath); err != nil {
				return err
			}
		default:
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening %s", src)
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return errors.Wrapf(err, "stating %s", src)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "creating %s", dst)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return errors.Wrapf(err, "copying %s", src)
	}
	return dstFile.Close()
}
