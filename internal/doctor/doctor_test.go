package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/proc"
)

func zfsToRcloneFile() *config.File {
	return &config.File{
		Backups: []config.BackupDefinition{{
			Name: "tank",
			Src:  config.SourceSpec{Path: "tank/data", Kind: config.SourceZFS},
			Dst: config.DestinationSpec{
				Path:    "remote:backup",
				Kind:    config.DestRclone,
				Archive: config.ArchiveSpec{Enable: true, Format: config.FormatSevenZip},
			},
		}},
	}
}

func TestToolsCheckAllPresent(t *testing.T) {
	check := NewToolsCheck(&proc.Fake{}, zfsToRcloneFile())
	result := check.Run()
	assert.Equal(t, SeverityPass, result.Status)
}

func TestToolsCheckMissingBinary(t *testing.T) {
	fake := &proc.Fake{Binaries: map[string]string{
		"zfs":    "/sbin/zfs",
		"mount":  "/bin/mount",
		"rclone": "/usr/bin/rclone",
		// 7zz and 7z absent.
	}}
	check := NewToolsCheck(fake, zfsToRcloneFile())
	result := check.Run()
	assert.Equal(t, SeverityError, result.Status)
	assert.Contains(t, result.Message, "7zz or 7z")
}

func TestToolsCheckInterchangeableBinaries(t *testing.T) {
	fake := &proc.Fake{Binaries: map[string]string{
		"zfs":    "/sbin/zfs",
		"mount":  "/bin/mount",
		"rclone": "/usr/bin/rclone",
		"7z":     "/usr/bin/7z", // only the fallback exists
	}}
	check := NewToolsCheck(fake, zfsToRcloneFile())
	result := check.Run()
	assert.Equal(t, SeverityPass, result.Status)
}

func TestDefinitionsCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backups.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backups:
  - name: docs
    src:
      path: /srv/docs
      type: directory
    dst:
      path: remote:backup
      type: rclone
`), 0o644))

	result := NewDefinitionsCheck(path).Run()
	assert.Equal(t, SeverityPass, result.Status)
	assert.Contains(t, result.Message, "1 backup definitions")
}

func TestDefinitionsCheckBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backups.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backups:
  - name: docs
    src:
      path: relative/path
      type: directory
    dst:
      path: remote:backup
      type: rclone
`), 0o644))

	result := NewDefinitionsCheck(path).Run()
	assert.Equal(t, SeverityError, result.Status)
	assert.NotEmpty(t, result.FixHint)
}

func TestWorkspacesCheck(t *testing.T) {
	good := t.TempDir()

	result := NewWorkspacesCheck([]string{good}).Run()
	assert.Equal(t, SeverityPass, result.Status)

	result = NewWorkspacesCheck([]string{filepath.Join(good, "missing")}).Run()
	assert.Equal(t, SeverityError, result.Status)

	result = NewWorkspacesCheck([]string{filepath.Join(good, "missing"), good}).Run()
	assert.Equal(t, SeverityWarning, result.Status)
}

func TestRunnerSummarizes(t *testing.T) {
	runner := NewRunner()
	runner.AddCheck(NewToolsCheck(&proc.Fake{}, zfsToRcloneFile()))
	runner.AddCheck(NewWorkspacesCheck([]string{t.TempDir()}))
	runner.AddCheck(NewWorkspacesCheck([]string{"/nonexistent/nowhere"}))

	report := runner.Run()
	assert.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.Summary.Passed)
	assert.Equal(t, 1, report.Summary.Errors)
	assert.True(t, report.HasErrors())
}
