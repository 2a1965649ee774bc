package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/hyunjaekim/crossbackup/internal/errors"
)

// AppName is used for config file lookup and environment prefixing.
const AppName = "crossbackup"

// storeOnly lists extensions that compression will not shrink. The rar
// archiver stores them instead of wasting time compressing.
var storeOnly = []string{
	".jpg", ".jpeg", ".png", ".avif", ".heif", ".heic", ".webp",
	".mp4", ".mov", ".webm", ".mkv", ".wmv", ".avi",
	".rar", ".7z", ".zst", ".zstd", ".bz2", ".lzma", ".xz", ".txz",
	".gz", ".tgz", ".tbz2",
	".m4a", ".opus", ".ogg", ".mp3", ".aac", ".flac",
}

// Settings are the program-level knobs, distinct from per-definition
// backup configuration.
type Settings struct {
	LogLevel       string   `mapstructure:"log_level"`
	RcloneLogLevel string   `mapstructure:"rclone_log_level"`
	Excludes       []string `mapstructure:"excludes"`

	TarArgs      []string `mapstructure:"tar_args"`
	SevenZipArgs []string `mapstructure:"sevenz_args"`
	RarArgs      []string `mapstructure:"rar_args"`

	// ArchiveWorkspaces are candidate directories for archive staging,
	// tried in order until one has enough free space.
	ArchiveWorkspaces []string `mapstructure:"archive_working_paths"`

	// TransferRetries is the number of push retries after the first
	// attempt. RetryBackoff is the initial backoff, doubled per retry.
	TransferRetries int           `mapstructure:"transfer_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`

	// CommandTimeout bounds every external tool invocation.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// Init installs defaults and search paths. Call once at startup, before
// Load.
func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(filepath.Join("/etc", AppName))
	viper.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))

	viper.SetEnvPrefix(strings.ToUpper(AppName))
	viper.AutomaticEnv()

	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("rclone_log_level", "INFO")
	viper.SetDefault("excludes", []string{
		"__pycache__/**",
		".Trash-1000/**",
		".thumbnails/**",
		".git/**",
		".DS_Store",
		"Thumbs.db",
		"*.lock",
	})
	viper.SetDefault("tar_args", []string{
		"--format=gnu",
		"-I", "zstd -19 --threads=0",
		"--preserve-permissions",
		"--xattrs",
	})
	viper.SetDefault("sevenz_args", []string{
		"-bd",
		"-scrcSHA256",
		"-m0=lzma2",
		"-mx7",
		"-mfb=64",
		"-md=32m",
		"-snl",
		"-ssp",
		"-ms=on",
		"-t7z",
	})
	viper.SetDefault("rar_args", []string{
		"-s",    // solid archive
		"-rr1",  // data recovery record
		"-htb",  // BLAKE2sp hashes
		"-m5",   // best compression
		"-ma5",  // RAR 5.0 format
		"-idc",  // no copyright banner
		"-ms" + strings.Join(storeOnly, ";"),
		"-r",
	})
	viper.SetDefault("archive_working_paths", []string{"/tmp", xdg.CacheHome})
	viper.SetDefault("transfer_retries", 2)
	viper.SetDefault("retry_backoff", 5*time.Second)
	viper.SetDefault("command_timeout", 4*time.Hour)
}

// Load reads the program settings. A missing config file is fine: the
// defaults apply. When path is non-empty it names an explicit file and
// missing becomes an error.
func Load(path string) (*Settings, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if path != "" {
				return nil, errors.Config(err, "settings file not found")
			}
		} else {
			return nil, errors.Config(err, "reading settings")
		}
	}

	return unmarshalSettings()
}

// Merge applies per-run overrides (the backups file's "config" mapping)
// on top of the loaded settings.
func Merge(overrides map[string]any) (*Settings, error) {
	if len(overrides) > 0 {
		if err := viper.MergeConfigMap(overrides); err != nil {
			return nil, errors.Config(err, "merging config overrides")
		}
	}
	return unmarshalSettings()
}

func unmarshalSettings() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, errors.Config(err, "unmarshaling settings")
	}
	if s.TransferRetries < 0 {
		return nil, errors.Configf("transfer_retries must not be negative")
	}
	return &s, nil
}
