package job

import (
	"context"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/retention"
	"github.com/hyunjaekim/crossbackup/internal/transfer"
)

// Clean applies each definition's retention timeline to the entries
// stored on its destination. Individual delete failures are collected
// and the remaining deletions still run.
func (r *Runner) Clean(ctx context.Context, defs []config.BackupDefinition) []Result {
	results := make([]Result, 0, len(defs))
	for _, def := range defs {
		res := r.cleanOne(ctx, def)
		if res.Err != nil {
			r.logger.Error("cleanup failed", "backup", def.Name, "error", res.Err)
		} else {
			r.logger.Info("cleanup finished", "backup", def.Name,
				"kept", res.Kept, "deleted", res.Deleted)
		}
		results = append(results, res)
	}
	return results
}

func (r *Runner) cleanOne(ctx context.Context, def config.BackupDefinition) Result {
	res := Result{Name: def.Name, State: StateIdle}
	logger := r.logger.With("backup", def.Name)

	backend, err := r.newBackend(ctx, def.Dst, r.transferDeps(logger))
	if err != nil {
		return res.fail(err)
	}

	entries, err := backend.List(ctx, def.Name)
	if err != nil {
		return res.fail(errors.Retention(err, "listing destination entries"))
	}

	plan := retention.Compute(entries, def.Dst.Timeline, r.now())
	res.Kept = len(plan.Keep)

	var failed error
	for _, e := range plan.Delete {
		logger.Info("deleting expired backup", "entry", e.Name)
		if derr := backend.Delete(ctx, e); derr != nil {
			logger.Error("cannot delete entry", "entry", e.Name, "error", derr)
			failed = errors.Join(failed, derr)
			continue
		}
		res.Deleted++
	}
	if failed != nil {
		return res.fail(errors.Retention(failed, "deleting expired backups"))
	}
	res.State = StateDone
	return res
}

// Listing is the stored entries of one definition, newest last.
type Listing struct {
	Name    string
	Entries []transfer.Entry
}

// List returns what each definition currently has on its destination.
// Definitions whose backend cannot be resolved or listed contribute to
// the joined error; the others are still returned.
func (r *Runner) List(ctx context.Context, defs []config.BackupDefinition) ([]Listing, error) {
	listings := make([]Listing, 0, len(defs))
	var failed error
	for _, def := range defs {
		logger := r.logger.With("backup", def.Name)
		backend, err := r.newBackend(ctx, def.Dst, r.transferDeps(logger))
		if err != nil {
			failed = errors.Join(failed, err)
			continue
		}
		entries, err := backend.List(ctx, def.Name)
		if err != nil {
			failed = errors.Join(failed, errors.Wrapf(err, "listing %s", def.Name))
			continue
		}
		listings = append(listings, Listing{Name: def.Name, Entries: entries})
	}
	return listings, failed
}
