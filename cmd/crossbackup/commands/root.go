// Package commands implements the CLI commands for crossbackup.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/logging"
)

// version is set at build time via ldflags.
// Default to a development version for local builds.
var version = "0.3.0"

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

// settingsPath holds the value of the --settings flag.
var settingsPath string

// Action flags. Exactly one must be set per invocation.
var (
	doBackup bool
	doClean  bool
	doList   bool
)

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"write logs to file in JSON format")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "",
		"program settings file (default: /etc/crossbackup, then XDG config)")

	rootCmd.Flags().BoolVarP(&doBackup, "backup", "b", false,
		"run every backup definition in order")
	rootCmd.Flags().BoolVarP(&doClean, "clean", "c", false,
		"apply the retention timeline to stored backups")
	rootCmd.Flags().BoolVarP(&doList, "list", "l", false,
		"list the backups stored on each destination")

	rootCmd.MarkFlagsMutuallyExclusive("backup", "clean", "list")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("crossbackup version {{.Version}}\n")

	// Silence errors and usage so main controls error output.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

var rootCmd = &cobra.Command{
	Use:   "crossbackup [flags] BACKUPS-FILE",
	Short: "Snapshot-based backups across filesystems and remotes",
	Long: `crossbackup takes point-in-time snapshots of directories, zfs
datasets or btrfs subvolumes, transfers them to an rclone remote or a
local directory (optionally packaged into a 7z, rar or tar.zst
archive), and deletes the snapshot afterwards. A generational timeline
keeps the stored backups bounded.

Backup definitions live in the BACKUPS-FILE; program settings come from
/etc/crossbackup, the XDG config directory, or --settings.`,
	Example: `  # Run all backups defined in the file
  crossbackup -b backups.yaml

  # Prune expired entries per the retention timeline
  crossbackup -c backups.yaml

  # Show what each destination currently holds
  crossbackup -l backups.yaml

  See Also: crossbackup doctor`,
	Args: cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(cmd)
	},
	RunE: run,
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return errors.NewUserError(nil, "cannot use --quiet and --verbose together")
	}

	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbosity > 0:
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var primary slog.Handler
	switch logging.Format(logFormat) {
	case logging.FormatJSON:
		primary = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	default:
		primary = logging.NewHandler(cmd.ErrOrStderr(), opts)
	}

	handlers := []slog.Handler{primary}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return errors.NewUserError(err, "failed to open log file")
		}
		// File output uses JSON format.
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = logging.NewMultiHandler(handlers...)
	} else {
		handler = handlers[0]
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Execute runs the root command under the given context. Cancelling it
// (operator interrupt) propagates into the running jobs.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
