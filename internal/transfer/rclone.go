package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/proc"
)

// rcloneBackend drives the rclone binary. Directory payloads are synced,
// artifacts are copied, and listings come from `rclone lsjson`.
type rcloneBackend struct {
	dest     string
	opts     config.RcloneOptions
	logLevel string
	excludes []string
	run      proc.Runner
	logger   *slog.Logger
}

func newRcloneBackend(ctx context.Context, dst config.DestinationSpec, deps Deps) (Backend, error) {
	b := &rcloneBackend{
		dest:     dst.Path,
		opts:     dst.Rclone,
		logLevel: deps.RcloneLogLevel,
		excludes: deps.Excludes,
		run:      deps.Runner,
		logger:   deps.Logger,
	}
	if err := b.checkRemote(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// checkRemote verifies that the destination's remote is configured in
// rclone. Paths without a remote part (plain local paths) are left to
// rclone itself.
func (b *rcloneBackend) checkRemote(ctx context.Context) error {
	remote, _, found := strings.Cut(b.dest, ":")
	if !found {
		return nil
	}

	out, err := b.run.Run(ctx, proc.Command{
		Name: "rclone",
		Args: []string{"listremotes"},
	})
	if err != nil {
		return errors.Config(err, "querying rclone remotes")
	}

	for _, line := range strings.Fields(string(out.Stdout)) {
		if strings.TrimSuffix(line, ":") == remote {
			return nil
		}
	}
	return errors.Configf("rclone remote %q is not configured", remote)
}

// commonArgs are the flags shared by every rclone invocation.
func (b *rcloneBackend) commonArgs() []string {
	return []string{
		"--log-level", b.logLevel,
		fmt.Sprintf("--drive-use-trash=%t", b.opts.UseTrash),
	}
}

func (b *rcloneBackend) excludeArgs() []string {
	args := make([]string, 0, len(b.excludes))
	for _, pattern := range b.excludes {
		args = append(args, "--exclude="+pattern)
	}
	return args
}

func (b *rcloneBackend) Push(ctx context.Context, payload Payload, remoteName string) error {
	target := b.dest + "/" + remoteName

	if payload.IsDir && b.opts.ServerSideCopy {
		b.serverSideCopy(ctx, remoteName)
	}

	args := []string{"--links"}
	args = append(args, b.commonArgs()...)
	if payload.IsDir {
		args = append(args, b.excludeArgs()...)
		args = append(args, "sync", payload.Path, target)
	} else {
		args = append(args, "copyto", payload.Path, target)
	}

	b.logger.Info("uploading backup", "target", target)
	if _, err := b.run.Run(ctx, proc.Command{
		Name:   "rclone",
		Args:   args,
		Stream: true,
	}); err != nil {
		return errors.Transfer(err, "uploading backup")
	}
	return nil
}

// serverSideCopy seeds the new remote directory from the most recent
// previous directory backup, so the following sync only transfers the
// delta. Best-effort: a failure here only costs bandwidth.
func (b *rcloneBackend) serverSideCopy(ctx context.Context, remoteName string) {
	prefix := remoteName
	if i := strings.LastIndexByte(prefix, '_'); i >= 0 {
		prefix = prefix[:i]
	}

	entries, err := b.List(ctx, prefix)
	if err != nil {
		return
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].IsDir {
			continue
		}
		latest := entries[i]
		b.logger.Info("copying previous backup server-side", "from", latest.Name, "to", remoteName)

		args := append([]string{"--log-level", b.logLevel}, b.excludeArgs()...)
		args = append(args, "copy", b.dest+"/"+latest.Name, b.dest+"/"+remoteName)
		if _, err := b.run.Run(ctx, proc.Command{
			Name:   "rclone",
			Args:   args,
			Stream: true,
		}); err != nil {
			b.logger.Warn("server-side copy failed, syncing from scratch", "error", err)
		}
		return
	}
}

// lsjsonEntry is the subset of `rclone lsjson` output we read.
type lsjsonEntry struct {
	Name     string `json:"Name"`
	Path     string `json:"Path"`
	IsDir    bool   `json:"IsDir"`
	MimeType string `json:"MimeType"`
}

func (b *rcloneBackend) List(ctx context.Context, prefix string) ([]Entry, error) {
	out, err := b.run.Run(ctx, proc.Command{
		Name: "rclone",
		Args: []string{"lsjson", b.dest},
	})
	if err != nil {
		// rclone fails when the destination directory does not exist
		// yet, which is exactly the first-backup case.
		b.logger.Warn("could not list destination, assuming empty", "dest", b.dest, "error", err)
		return nil, nil
	}

	var raw []lsjsonEntry
	if err := json.Unmarshal(out.Stdout, &raw); err != nil {
		return nil, errors.Transfer(err, "parsing rclone listing")
	}

	var entries []Entry
	for _, e := range raw {
		ts, ok := ParseEntryName(prefix, e.Name)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Name:      e.Name,
			Prefix:    prefix,
			Timestamp: ts,
			IsDir:     e.IsDir || e.MimeType == "inode/directory",
		})
	}
	sortEntries(entries)
	return entries, nil
}

func (b *rcloneBackend) Delete(ctx context.Context, e Entry) error {
	verb := "delete"
	if e.IsDir {
		verb = "purge"
	}

	args := append(b.commonArgs(), verb, b.dest+"/"+e.Name)
	b.logger.Info("deleting backup", "entry", e.Name)
	if _, err := b.run.Run(ctx, proc.Command{
		Name: "rclone",
		Args: args,
	}); err != nil {
		return errors.Transfer(err, "deleting backup")
	}
	return nil
}

func (b *rcloneBackend) IncrementalReceive() bool {
	return false
}
