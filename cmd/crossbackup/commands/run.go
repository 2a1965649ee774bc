package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/job"
	"github.com/hyunjaekim/crossbackup/internal/proc"
)

func run(cmd *cobra.Command, args []string) error {
	if !doBackup && !doClean && !doList {
		return errors.NewUserError(
			errors.Newf("nothing to do"),
			"choose one of --backup, --clean, --list")
	}

	runner, file, err := buildRunner(args[0])
	if err != nil {
		return errors.NewUserError(err, "fix the configuration and try again")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	failed := 0

	if doBackup {
		results := runner.Backup(ctx, file.Backups)
		failed += printResults(out, "backup", results)
	}
	if doClean {
		results := runner.Clean(ctx, file.Backups)
		failed += printResults(out, "clean", results)
	}
	if doList {
		listings, lerr := runner.List(ctx, file.Backups)
		printListings(out, listings)
		if lerr != nil {
			slog.Error("listing failed", "error", lerr)
			failed++
		}
	}

	if failed > 0 {
		return errors.NewSystemError(
			errors.Newf("%d operations failed", failed),
			"see the log output above for details")
	}
	return nil
}

// buildRunner loads program settings and the backups file, then wires
// the job runner over them.
func buildRunner(backupsFile string) (*job.Runner, *config.File, error) {
	config.Init()
	if _, err := config.Load(settingsPath); err != nil {
		return nil, nil, err
	}

	file, err := config.LoadFile(backupsFile)
	if err != nil {
		return nil, nil, err
	}

	// The backups file may override program settings for this run.
	settings, err := config.Merge(file.Overrides)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.Default()
	pr := proc.NewRunner(logger, proc.WithTimeout(settings.CommandTimeout))
	return job.New(*settings, logger, pr), file, nil
}

// printResults writes the per-definition summary and returns how many
// definitions failed.
func printResults(w io.Writer, action string, results []job.Result) int {
	okMark := color.New(color.FgGreen).Sprint("ok")
	failMark := color.New(color.FgRed).Sprint("failed")
	warnMark := color.New(color.FgYellow).Sprint("warning")

	failed := 0
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
			fmt.Fprintf(w, "%s %s: %s (%v)\n", failMark, action, res.Name, res.Err)
		case len(res.Warnings) > 0:
			fmt.Fprintf(w, "%s %s: %s\n", warnMark, action, res.Name)
		default:
			fmt.Fprintf(w, "%s %s: %s\n", okMark, action, res.Name)
		}
		for _, warning := range res.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
		if action == "clean" && res.Err == nil {
			fmt.Fprintf(w, "  kept %d, deleted %d\n", res.Kept, res.Deleted)
		}
	}
	return failed
}

func printListings(w io.Writer, listings []job.Listing) {
	bold := color.New(color.Bold)
	for _, listing := range listings {
		bold.Fprintf(w, "%s\n", listing.Name)
		if len(listing.Entries) == 0 {
			fmt.Fprintln(w, "  (no backups stored)")
			continue
		}
		for _, e := range listing.Entries {
			kind := "archive"
			if e.IsDir {
				kind = "tree"
			}
			fmt.Fprintf(w, "  %s  %s  %s\n",
				e.Timestamp.Format("2006-01-02 15:04:05 MST"), kind, e.Name)
		}
	}
}
