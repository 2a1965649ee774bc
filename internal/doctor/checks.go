package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/proc"
)

// ToolsCheck verifies that every external tool the loaded definitions
// need is on PATH. Only tools a definition actually uses are required;
// a setup without zfs sources does not need the zfs binary.
type ToolsCheck struct {
	runner proc.Runner
	file   *config.File
}

var _ Check = (*ToolsCheck)(nil)

// NewToolsCheck creates a tools check over the loaded backups file.
func NewToolsCheck(runner proc.Runner, file *config.File) *ToolsCheck {
	return &ToolsCheck{runner: runner, file: file}
}

// Name returns the unique identifier for this check.
func (c *ToolsCheck) Name() string {
	return "external-tools"
}

// Category returns the grouping for this check.
func (c *ToolsCheck) Category() string {
	return "tools"
}

// Run executes the tools diagnostic check.
func (c *ToolsCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	var missing []string
	for _, group := range c.requiredTools() {
		if !c.anyOnPath(group) {
			missing = append(missing, strings.Join(group, " or "))
		}
	}

	if len(missing) > 0 {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("missing tools: %s", strings.Join(missing, ", "))
		result.FixHint = "install the missing tools with your package manager"
		return result
	}

	result.Status = SeverityPass
	result.Message = "all required tools found"
	return result
}

// requiredTools derives the tool set from the definitions. Each inner
// slice lists interchangeable binaries; one of them must exist.
func (c *ToolsCheck) requiredTools() [][]string {
	seen := map[string][]string{}
	add := func(group ...string) { seen[group[0]] = group }

	for _, def := range c.file.Backups {
		switch def.Src.Kind {
		case config.SourceZFS:
			add("zfs")
			add("mount")
		case config.SourceBtrfs:
			add("btrfs")
		}
		if def.Dst.Kind == config.DestRclone {
			add("rclone")
		}
		if def.Dst.Archive.Enable {
			switch def.Dst.Archive.Format {
			case config.FormatSevenZip:
				add("7zz", "7z")
			case config.FormatRar:
				add("rar")
			case config.FormatTar:
				add("tar")
				add("zstd")
			}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([][]string, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, seen[k])
	}
	return groups
}

func (c *ToolsCheck) anyOnPath(group []string) bool {
	for _, bin := range group {
		if _, err := c.runner.LookPath(bin); err == nil {
			return true
		}
	}
	return false
}

// DefinitionsCheck verifies that the backups file parses and validates.
type DefinitionsCheck struct {
	path string
}

var _ Check = (*DefinitionsCheck)(nil)

// NewDefinitionsCheck creates a definitions file check.
func NewDefinitionsCheck(path string) *DefinitionsCheck {
	return &DefinitionsCheck{path: path}
}

// Name returns the unique identifier for this check.
func (c *DefinitionsCheck) Name() string {
	return "backups-file"
}

// Category returns the grouping for this check.
func (c *DefinitionsCheck) Category() string {
	return "config"
}

// Run executes the definitions diagnostic check.
func (c *DefinitionsCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	file, err := config.LoadFile(c.path)
	if err != nil {
		result.Status = SeverityError
		result.Message = err.Error()
		result.FixHint = "fix the backups file and run doctor again"
		return result
	}

	if len(file.Backups) == 0 {
		result.Status = SeverityWarning
		result.Message = "backups file contains no definitions"
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%d backup definitions loaded", len(file.Backups))
	return result
}

// WorkspacesCheck verifies that at least one archive workspace exists
// and is writable.
type WorkspacesCheck struct {
	workspaces []string
}

var _ Check = (*WorkspacesCheck)(nil)

// NewWorkspacesCheck creates a workspace check over the configured
// archive staging directories.
func NewWorkspacesCheck(workspaces []string) *WorkspacesCheck {
	return &WorkspacesCheck{workspaces: workspaces}
}

// Name returns the unique identifier for this check.
func (c *WorkspacesCheck) Name() string {
	return "archive-workspaces"
}

// Category returns the grouping for this check.
func (c *WorkspacesCheck) Category() string {
	return "filesystem"
}

// Run executes the workspace diagnostic check.
func (c *WorkspacesCheck) Run() *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	var usable []string
	var problems []string
	for _, ws := range c.workspaces {
		if err := writable(ws); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", ws, err))
			continue
		}
		usable = append(usable, ws)
	}

	switch {
	case len(usable) == 0:
		result.Status = SeverityError
		result.Message = fmt.Sprintf("no usable archive workspace: %s", strings.Join(problems, "; "))
		result.FixHint = "set archive_working_paths to a writable directory"
	case len(problems) > 0:
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("some workspaces unusable: %s", strings.Join(problems, "; "))
	default:
		result.Status = SeverityPass
		result.Message = fmt.Sprintf("%d usable workspaces", len(usable))
	}
	return result
}

func writable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}
	probe, err := os.CreateTemp(dir, ".crossbackup-doctor-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(filepath.Clean(name))
}
