package snapshot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hyunjaekim/crossbackup/internal/errors"
)

// directoryProvider is the no-snapshot pass-through for plain
// directories. The transfer reads the live tree, so files modified
// during the run may be captured inconsistently; callers wanting a
// consistent view must use a CoW source.
type directoryProvider struct {
	path   string
	logger *slog.Logger
}

func newDirectoryProvider(path string, logger *slog.Logger) (Provider, error) {
	if !filepath.IsAbs(path) {
		return nil, errors.Configf("source path %q is not absolute", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Config(err, "checking source path")
	}
	if !info.IsDir() {
		return nil, errors.Configf("source path %q is not a directory", path)
	}
	return &directoryProvider{path: path, logger: logger}, nil
}

func (p *directoryProvider) Snapshot(_ context.Context) (*Snapshot, error) {
	p.logger.Debug("directory source has no snapshot support, reading live tree", "path", p.path)
	return &Snapshot{
		ID:        p.path,
		Path:      p.path,
		CreatedAt: time.Now(),
	}, nil
}

func (p *directoryProvider) Delete(_ context.Context, snap *Snapshot) error {
	// Nothing was created, nothing to destroy.
	snap.deleted = true
	return nil
}

func (p *directoryProvider) Leftovers(_ context.Context) ([]string, error) {
	return nil, nil
}

func (p *directoryProvider) Incremental() bool {
	return false
}
