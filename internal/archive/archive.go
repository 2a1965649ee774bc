// Package archive packages a payload directory into a single compressed
// artifact before upload. The artifact lives in a scoped temporary
// directory that is removed on every exit path, success or failure.
package archive

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/proc"
)

// Deps are the collaborators and program settings the archiver needs.
type Deps struct {
	Runner proc.Runner
	Logger *slog.Logger

	// Workspaces are candidate staging directories, tried in order until
	// one has enough free space for the payload.
	Workspaces []string

	TarArgs      []string
	SevenZipArgs []string
	RarArgs      []string
}

// Archiver produces artifacts in one configured format.
type Archiver struct {
	format config.ArchiveFormat
	deps   Deps
}

// Artifact is the packaged payload, owned by one job for one run.
type Artifact struct {
	// Path is the artifact file in its staging directory.
	Path string

	// Name is the artifact's file name, used as the remote entry name.
	Name string

	tmpDir string
	logger *slog.Logger
}

// Close removes the artifact and its staging directory. Safe to call
// more than once; jobs defer it so the temp area never outlives the run.
func (a *Artifact) Close() error {
	if a.tmpDir == "" {
		return nil
	}
	a.logger.Debug("removing archive staging directory", "dir", a.tmpDir)
	err := os.RemoveAll(a.tmpDir)
	a.tmpDir = ""
	if err != nil {
		return errors.Archive(err, "removing staging directory")
	}
	return nil
}

// New creates an archiver for the given format.
func New(format config.ArchiveFormat, deps Deps) (*Archiver, error) {
	switch format {
	case config.FormatSevenZip, config.FormatRar, config.FormatTar:
	default:
		return nil, errors.Configf("unknown archive type %q", format)
	}
	if len(deps.Workspaces) == 0 {
		deps.Workspaces = []string{os.TempDir()}
	}
	return &Archiver{format: format, deps: deps}, nil
}

// Ext returns the artifact extension for the configured format.
func (a *Archiver) Ext() string {
	switch a.format {
	case config.FormatSevenZip:
		return ".7z"
	case config.FormatRar:
		return ".rar"
	default:
		return ".tar.zst"
	}
}

// Create packages srcDir into a single artifact named baseName plus the
// format extension. A missing archiver binary or non-zero tool exit is
// an errors.ErrArchive; partial state is cleaned up before returning.
func (a *Archiver) Create(ctx context.Context, srcDir, baseName string) (*Artifact, error) {
	bin, err := a.lookupBinary()
	if err != nil {
		return nil, err
	}

	members, err := topLevelMembers(srcDir)
	if err != nil {
		return nil, err
	}

	workspace, err := a.pickWorkspace(srcDir)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp(workspace, "crossbackup-*")
	if err != nil {
		return nil, errors.Archive(err, "creating staging directory")
	}

	artifact := &Artifact{
		Path:   filepath.Join(tmpDir, baseName+a.Ext()),
		Name:   baseName + a.Ext(),
		tmpDir: tmpDir,
		logger: a.deps.Logger,
	}

	a.deps.Logger.Info("archiving payload", "src", srcDir, "artifact", artifact.Path)
	if err := a.runTool(ctx, bin, srcDir, artifact.Path, members); err != nil {
		_ = artifact.Close()
		return nil, err
	}
	return artifact, nil
}

func (a *Archiver) lookupBinary() (string, error) {
	switch a.format {
	case config.FormatSevenZip:
		// Prefer the standalone 7zz, fall back to 7z.
		if bin, err := a.deps.Runner.LookPath("7zz"); err == nil {
			return bin, nil
		}
		bin, err := a.deps.Runner.LookPath("7z")
		if err != nil {
			return "", errors.Archive(err, "neither 7zz nor 7z found in PATH")
		}
		return bin, nil
	case config.FormatRar:
		bin, err := a.deps.Runner.LookPath("rar")
		if err != nil {
			return "", errors.Archive(err, "rar not found in PATH")
		}
		return bin, nil
	default:
		if _, err := a.deps.Runner.LookPath("zstd"); err != nil {
			return "", errors.Archive(err, "zstd not found in PATH")
		}
		bin, err := a.deps.Runner.LookPath("tar")
		if err != nil {
			return "", errors.Archive(err, "tar not found in PATH")
		}
		return bin, nil
	}
}

func (a *Archiver) runTool(ctx context.Context, bin, srcDir, artifactPath string, members []string) error {
	var args []string
	switch a.format {
	case config.FormatSevenZip:
		args = append(slices.Clone(a.deps.SevenZipArgs), "a", artifactPath)
	case config.FormatRar:
		// The "a" command verb must sit between the switches and the
		// artifact path; strip it from rar_args so a settings file that
		// carries it does not produce a second verb.
		for _, arg := range a.deps.RarArgs {
			if arg != "a" {
				args = append(args, arg)
			}
		}
		args = append(args, "a", artifactPath)
	default:
		args = append(slices.Clone(a.deps.TarArgs), "-cf", artifactPath)
	}
	args = append(args, members...)

	if _, err := a.deps.Runner.Run(ctx, proc.Command{Name: bin, Args: args, Dir: srcDir}); err != nil {
		return errors.Archive(err, "running archiver")
	}

	if a.format == config.FormatRar {
		// rar can verify its own recovery records; catch a bad artifact
		// before it gets uploaded.
		if _, err := a.deps.Runner.Run(ctx, proc.Command{
			Name: bin,
			Args: []string{"-idc", "t", artifactPath},
		}); err != nil {
			return errors.Archive(err, "verifying archive")
		}
	}
	return nil
}

// topLevelMembers lists the entries to hand to the archiver, sorted for
// reproducible member order.
func topLevelMembers(srcDir string) ([]string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, errors.Archive(err, "reading payload")
	}
	if len(entries) == 0 {
		return nil, errors.Archive(errors.Newf("%s is empty", srcDir), "nothing to archive")
	}

	members := make([]string, 0, len(entries))
	for _, e := range entries {
		members = append(members, e.Name())
	}
	sort.Strings(members)
	return members, nil
}
