package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/doctor"
	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/proc"
)

var doctorJSON bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false,
		"output results as JSON")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor BACKUPS-FILE",
	Short: "Diagnose setup issues",
	Long: `Run diagnostic checks against a backups file: whether it parses and
validates, whether the external tools its definitions need are
installed, and whether the archive workspaces are usable.

Exit codes:
  0 - All checks passed
  2 - Errors present`,
	Args: cobra.ExactArgs(1),
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	config.Init()
	if _, err := config.Load(settingsPath); err != nil {
		return errors.NewUserError(err, "fix the settings file and try again")
	}
	settings, err := config.Merge(nil)
	if err != nil {
		return errors.NewUserError(err, "fix the settings file and try again")
	}

	runner := doctor.NewRunner()
	runner.AddCheck(doctor.NewDefinitionsCheck(args[0]))
	runner.AddCheck(doctor.NewWorkspacesCheck(settings.ArchiveWorkspaces))

	// Tool requirements depend on the definitions; skip that check when
	// the file itself is broken.
	if file, ferr := config.LoadFile(args[0]); ferr == nil {
		runner.AddCheck(doctor.NewToolsCheck(proc.NewRunner(slog.Default()), file))
	}

	report := runner.Run()

	if doctorJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return errors.Wrap(err, "encoding report")
		}
	} else {
		printReport(cmd, report)
	}

	if report.HasErrors() {
		return errors.NewSystemError(
			errors.Newf("%d checks failed", report.Summary.Errors),
			"resolve the reported problems and run doctor again")
	}
	return nil
}

func printReport(cmd *cobra.Command, report *doctor.Report) {
	marks := map[doctor.Severity]string{
		doctor.SeverityPass:    color.New(color.FgGreen).Sprint("pass"),
		doctor.SeverityInfo:    color.New(color.FgCyan).Sprint("info"),
		doctor.SeverityWarning: color.New(color.FgYellow).Sprint("warn"),
		doctor.SeverityError:   color.New(color.FgRed).Sprint("fail"),
	}

	out := cmd.OutOrStdout()
	for _, res := range report.Results {
		fmt.Fprintf(out, "%s  %-18s %s\n", marks[res.Status], res.Name, res.Message)
		if res.FixHint != "" && res.Status >= doctor.SeverityWarning {
			fmt.Fprintf(out, "      hint: %s\n", res.FixHint)
		}
	}
	fmt.Fprintf(out, "\n%d passed, %d warnings, %d errors\n",
		report.Summary.Passed, report.Summary.Warnings, report.Summary.Errors)
}
