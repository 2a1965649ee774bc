// Package job runs backup definitions through their lifecycle: snapshot
// the source, optionally archive, push to the destination, delete the
// snapshot. It also applies the retention timeline and lists stored
// entries. Everything runs strictly in definition order; a failed
// definition never stops the ones after it.
package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyunjaekim/crossbackup/internal/archive"
	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/proc"
	"github.com/hyunjaekim/crossbackup/internal/snapshot"
	"github.com/hyunjaekim/crossbackup/internal/transfer"
)

// State is where a job currently is in its lifecycle.
type State string

// Job lifecycle states. Archiving and uploading replace transferring
// when the destination wants a packaged artifact.
const (
	StateIdle         State = "idle"
	StateSnapshotting State = "snapshotting"
	StateTransferring State = "transferring"
	StateArchiving    State = "archiving"
	StateUploading    State = "uploading"
	StateCleaning     State = "cleaning_snapshot"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Result is the outcome of one definition's run.
type Result struct {
	Name     string
	State    State
	Attempts int
	Err      error

	// Warnings are conditions that did not fail the job: leftover
	// snapshots from crashed runs, best-effort cleanup failures.
	Warnings []string

	// Kept and Deleted are filled by Clean.
	Kept    int
	Deleted int
}

func (r *Result) fail(err error) Result {
	r.State = StateFailed
	r.Err = err
	return *r
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, errors.Newf(format, args...).Error())
}

// Runner executes backup definitions one at a time, in order.
type Runner struct {
	settings config.Settings
	logger   *slog.Logger
	proc     proc.Runner

	// Seams for tests.
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	newProvider func(spec config.SourceSpec, runner proc.Runner, logger *slog.Logger) (snapshot.Provider, error)
	newBackend  func(ctx context.Context, dst config.DestinationSpec, deps transfer.Deps) (transfer.Backend, error)
}

// New builds a runner over the loaded program settings.
func New(settings config.Settings, logger *slog.Logger, pr proc.Runner) *Runner {
	return &Runner{
		settings:    settings,
		logger:      logger,
		proc:        pr,
		now:         time.Now,
		sleep:       sleepCtx,
		newProvider: snapshot.New,
		newBackend:  transfer.New,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backup runs every definition in order. A definition failure is
// recorded in its Result and execution moves on to the next one.
func (r *Runner) Backup(ctx context.Context, defs []config.BackupDefinition) []Result {
	results := make([]Result, 0, len(defs))
	for _, def := range defs {
		res := r.backupOne(ctx, def)
		if res.Err != nil {
			r.logger.Error("backup failed", "backup", def.Name, "error", res.Err)
		} else {
			r.logger.Info("backup finished", "backup", def.Name, "attempts", res.Attempts)
		}
		results = append(results, res)
	}
	return results
}

func (r *Runner) backupOne(ctx context.Context, def config.BackupDefinition) (res Result) {
	res = Result{Name: def.Name, State: StateIdle}
	logger := r.logger.With("backup", def.Name)

	provider, err := r.newProvider(def.Src, r.proc, logger)
	if err != nil {
		return res.fail(err)
	}
	backend, err := r.newBackend(ctx, def.Dst, r.transferDeps(logger))
	if err != nil {
		return res.fail(err)
	}

	var archiver *archive.Archiver
	if def.Dst.Archive.Enable {
		archiver, err = archive.New(def.Dst.Archive.Format, archive.Deps{
			Runner:       r.proc,
			Logger:       logger,
			Workspaces:   r.settings.ArchiveWorkspaces,
			TarArgs:      r.settings.TarArgs,
			SevenZipArgs: r.settings.SevenZipArgs,
			RarArgs:      r.settings.RarArgs,
		})
		if err != nil {
			return res.fail(err)
		}
	}

	// Incremental transfer needs both sides to support it. No backend
	// can receive deltas yet, so this stays a negotiation log line and
	// the full payload path below is always taken.
	if provider.Incremental() && backend.IncrementalReceive() {
		logger.Debug("incremental transfer negotiated")
	} else {
		logger.Debug("using full payload transfer")
	}

	if leftovers, lerr := provider.Leftovers(ctx); lerr != nil {
		logger.Warn("cannot check for leftover snapshots", "error", lerr)
	} else {
		for _, name := range leftovers {
			logger.Warn("leftover snapshot from a previous run", "snapshot", name)
			res.warn("leftover snapshot %s needs manual cleanup", name)
		}
	}

	res.State = StateSnapshotting
	snap, err := provider.Snapshot(ctx)
	if err != nil {
		return res.fail(err)
	}

	// The snapshot must go away on every exit path, including
	// cancellation, so cleanup runs on a context that survives it.
	// A delete failure is surfaced as a warning: it neither masks the
	// job error nor flips a finished upload to failed.
	defer func() {
		res.State = StateCleaning
		if derr := provider.Delete(context.WithoutCancel(ctx), snap); derr != nil {
			logger.Error("snapshot not deleted", "snapshot", snap.ID, "error", derr)
			res.warn("snapshot %s not deleted: %v", snap.ID, derr)
		}
		if res.Err == nil {
			res.State = StateDone
		} else {
			res.State = StateFailed
		}
	}()

	remoteName := transfer.EntryName(def.Name, snap.CreatedAt)
	payload := transfer.Payload{Path: snap.Path, IsDir: true}

	if archiver != nil {
		res.State = StateArchiving
		artifact, aerr := archiver.Create(ctx, snap.Path, remoteName)
		if aerr != nil {
			res.Err = aerr
			return res
		}
		defer func() {
			if cerr := artifact.Close(); cerr != nil {
				res.warn("archive staging not removed: %v", cerr)
			}
		}()
		remoteName = artifact.Name
		payload = transfer.Payload{Path: artifact.Path, IsDir: false}
		res.State = StateUploading
	} else {
		res.State = StateTransferring
	}

	res.Attempts, err = r.push(ctx, logger, backend, payload, remoteName)
	if err != nil {
		r.undoPartialUpload(ctx, logger, &res, backend, def.Name, remoteName, payload.IsDir)
		res.Err = err
		return res
	}
	return res
}

// push uploads the payload, retrying with doubling backoff up to the
// configured retry count. It returns how many attempts were made.
func (r *Runner) push(ctx context.Context, logger *slog.Logger, backend transfer.Backend, payload transfer.Payload, remoteName string) (int, error) {
	backoff := r.settings.RetryBackoff
	attempts := 0
	for {
		attempts++
		err := backend.Push(ctx, payload, remoteName)
		if err == nil {
			return attempts, nil
		}
		if attempts > r.settings.TransferRetries {
			return attempts, err
		}
		logger.Warn("push failed, retrying",
			"attempt", attempts, "backoff", backoff, "error", err)
		if serr := r.sleep(ctx, backoff); serr != nil {
			return attempts, err
		}
		backoff *= 2
	}
}

// undoPartialUpload removes whatever a failed push left behind on the
// destination. Best effort: the push error is what the job reports.
func (r *Runner) undoPartialUpload(ctx context.Context, logger *slog.Logger, res *Result, backend transfer.Backend, prefix, remoteName string, isDir bool) {
	ts, ok := transfer.ParseEntryName(prefix, remoteName)
	if !ok {
		return
	}
	logger.Info("removing partial upload", "entry", remoteName)
	entry := transfer.Entry{Name: remoteName, Prefix: prefix, Timestamp: ts, IsDir: isDir}
	if err := backend.Delete(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("cannot remove partial upload", "entry", remoteName, "error", err)
		res.warn("partial upload %s may remain on the destination", remoteName)
	}
}

func (r *Runner) transferDeps(logger *slog.Logger) transfer.Deps {
	return transfer.Deps{
		Runner:         r.proc,
		Logger:         logger,
		RcloneLogLevel: r.settings.RcloneLogLevel,
		Excludes:       r.settings.Excludes,
	}
}
