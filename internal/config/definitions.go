package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyunjaekim/crossbackup/internal/errors"
)

// SourceKind identifies a snapshot provider.
type SourceKind string

// Supported source kinds.
const (
	SourceDirectory SourceKind = "directory"
	SourceZFS       SourceKind = "zfs"
	SourceBtrfs     SourceKind = "btrfs"
)

// DestinationKind identifies a transfer backend.
type DestinationKind string

// Destination kinds accepted by the definitions file. The zfs and btrfs
// receive-side backends are recognized here but rejected by the transfer
// registry until they exist.
const (
	DestRclone    DestinationKind = "rclone"
	DestDirectory DestinationKind = "directory"
	DestZFS       DestinationKind = "zfs"
	DestBtrfs     DestinationKind = "btrfs"
)

// ArchiveFormat identifies an archiver.
type ArchiveFormat string

// Supported archive formats. FormatTar means tar piped through zstd and
// produces .tar.zst artifacts.
const (
	FormatSevenZip ArchiveFormat = "7z"
	FormatRar      ArchiveFormat = "rar"
	FormatTar      ArchiveFormat = "tar"
)

// SourceSpec names what gets snapshotted: a directory path, a zfs
// dataset, or a btrfs subvolume path.
type SourceSpec struct {
	Path string     `yaml:"path"`
	Kind SourceKind `yaml:"type"`
}

// ArchiveSpec governs whether uploads are packaged into a single
// compressed artifact first.
type ArchiveSpec struct {
	Enable bool          `yaml:"enable"`
	Format ArchiveFormat `yaml:"type"`
}

// RcloneOptions are pass-through toggles for the rclone backend.
type RcloneOptions struct {
	ServerSideCopy bool `yaml:"server_side_copy"`
	UseTrash       bool `yaml:"use_trash"`
}

// RetentionSpec is the generational retention rule set for one
// destination. A limit of 0 disables that bucket: it contributes no
// keep-reasons.
type RetentionSpec struct {
	MinAge       int `yaml:"min_age"` // seconds; younger entries are never deleted
	LimitHourly  int `yaml:"limit_hourly"`
	LimitDaily   int `yaml:"limit_daily"`
	LimitWeekly  int `yaml:"limit_weekly"`
	LimitMonthly int `yaml:"limit_monthly"`
	LimitYearly  int `yaml:"limit_yearly"`
}

// DefaultRetention returns the retention rule set used when a definition
// has no timeline section.
func DefaultRetention() RetentionSpec {
	return RetentionSpec{
		MinAge:       1800,
		LimitHourly:  10,
		LimitDaily:   10,
		LimitWeekly:  0,
		LimitMonthly: 10,
		LimitYearly:  10,
	}
}

// DestinationSpec names where backups go and how.
type DestinationSpec struct {
	Path     string          `yaml:"path"`
	Kind     DestinationKind `yaml:"type"`
	Archive  ArchiveSpec     `yaml:"archive"`
	Rclone   RcloneOptions   `yaml:"rclone_config"`
	Timeline RetentionSpec   `yaml:"timeline"`
}

// UnmarshalYAML applies defaults for the optional sections before
// decoding, so an absent timeline means the default rule set rather than
// all zeroes.
func (d *DestinationSpec) UnmarshalYAML(value *yaml.Node) error {
	type plain DestinationSpec
	tmp := plain{
		Archive:  ArchiveSpec{Format: FormatRar},
		Timeline: DefaultRetention(),
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*d = DestinationSpec(tmp)
	return nil
}

// BackupDefinition is one named backup, immutable once loaded. Its name
// is the prefix of every remote entry it produces.
type BackupDefinition struct {
	Name string          `yaml:"name"`
	Src  SourceSpec      `yaml:"src"`
	Dst  DestinationSpec `yaml:"dst"`
}

// File is the parsed backups file.
type File struct {
	// Overrides is the optional top-level "config" mapping, merged over
	// the program settings for this run.
	Overrides map[string]any `yaml:"config"`

	// Backups execute in declared order.
	Backups []BackupDefinition `yaml:"backups"`
}

// LoadFile reads and validates a backups file. Any problem is an
// errors.ErrConfig: the run must fail before a snapshot is taken.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Config(err, "reading backups file")
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Config(err, "parsing backups file")
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	seen := make(map[string]struct{}, len(f.Backups))
	for i := range f.Backups {
		def := &f.Backups[i]
		if err := def.validate(); err != nil {
			return err
		}
		if _, dup := seen[def.Name]; dup {
			return errors.Configf("duplicate backup name %q", def.Name)
		}
		seen[def.Name] = struct{}{}
	}
	return nil
}

func (d *BackupDefinition) validate() error {
	if d.Name == "" {
		return errors.Configf("backup definition is missing a name")
	}

	switch d.Src.Kind {
	case SourceDirectory, SourceBtrfs:
		if !filepath.IsAbs(d.Src.Path) {
			return errors.Configf("%s: source path %q is not absolute", d.Name, d.Src.Path)
		}
	case SourceZFS:
		if strings.Contains(d.Src.Path, "@") || strings.HasPrefix(d.Src.Path, "/") {
			return errors.Configf("%s: %q is not a dataset name", d.Name, d.Src.Path)
		}
	default:
		return errors.Configf("%s: unknown source type %q", d.Name, d.Src.Kind)
	}
	if d.Src.Path == "" {
		return errors.Configf("%s: source path is empty", d.Name)
	}

	switch d.Dst.Kind {
	case DestRclone, DestDirectory, DestZFS, DestBtrfs:
	default:
		return errors.Configf("%s: unknown destination type %q", d.Name, d.Dst.Kind)
	}
	if d.Dst.Path == "" {
		return errors.Configf("%s: destination path is empty", d.Name)
	}
	if strings.HasSuffix(d.Dst.Path, "/") {
		return errors.Configf("%s: destination path must not end with a slash", d.Name)
	}

	if d.Dst.Archive.Enable {
		switch d.Dst.Archive.Format {
		case FormatSevenZip, FormatRar, FormatTar:
		default:
			return errors.Configf("%s: unknown archive type %q", d.Name, d.Dst.Archive.Format)
		}
	}

	t := d.Dst.Timeline
	for _, v := range []int{t.MinAge, t.LimitHourly, t.LimitDaily, t.LimitWeekly, t.LimitMonthly, t.LimitYearly} {
		if v < 0 {
			return errors.Configf("%s: timeline values must not be negative", d.Name)
		}
	}
	return nil
}
