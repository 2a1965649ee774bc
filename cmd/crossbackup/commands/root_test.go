package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyunjaekim/crossbackup/internal/errors"
	"github.com/hyunjaekim/crossbackup/internal/job"
	"github.com/hyunjaekim/crossbackup/internal/transfer"
)

func writeBackupsFile(t *testing.T, src, dst string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backups.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backups:
  - name: docs
    src:
      path: `+src+`
      type: directory
    dst:
      path: `+dst+`
      type: directory
`), 0o644))
	return path
}

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		doBackup, doClean, doList = false, false, false
		verbosity, quiet = 0, false
		logFormat, logFile, settingsPath = "text", "", ""
		rootCmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	})
}

func TestRootRequiresAnAction(t *testing.T) {
	resetFlags(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("a"), 0o644))
	path := writeBackupsFile(t, src, t.TempDir())

	rootCmd.SetArgs([]string{path})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})

	err := rootCmd.Execute()
	require.Error(t, err)

	var exit *errors.ExitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, errors.ExitUser, exit.Code)
}

func TestRootListAgainstDirectoryDestination(t *testing.T) {
	resetFlags(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("a"), 0o644))
	path := writeBackupsFile(t, src, t.TempDir())

	var out bytes.Buffer
	rootCmd.SetArgs([]string{"-l", path})
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "docs")
	assert.Contains(t, out.String(), "no backups stored")
}

func TestRootRejectsBrokenBackupsFile(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "backups.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backups: [{name: '', src: {}, dst: {}}]"), 0o644))

	rootCmd.SetArgs([]string{"-b", path})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})

	err := rootCmd.Execute()
	require.Error(t, err)

	var exit *errors.ExitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, errors.ExitUser, exit.Code)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestPrintResultsCountsFailures(t *testing.T) {
	var out bytes.Buffer
	failed := printResults(&out, "backup", []job.Result{
		{Name: "a", State: job.StateDone},
		{Name: "b", State: job.StateFailed, Err: errors.New("pool gone")},
		{Name: "c", State: job.StateDone, Warnings: []string{"leftover snapshot cbk_x"}},
	})

	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "backup: a")
	assert.Contains(t, out.String(), "pool gone")
	assert.Contains(t, out.String(), "leftover snapshot cbk_x")
}

func TestPrintListings(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	printListings(&out, []job.Listing{{
		Name: "docs",
		Entries: []transfer.Entry{{
			Name:      "docs_20260830T120000Z.rar",
			Prefix:    "docs",
			Timestamp: ts,
		}},
	}})

	assert.Contains(t, out.String(), "docs_20260830T120000Z.rar")
	assert.Contains(t, out.String(), "archive")
}
