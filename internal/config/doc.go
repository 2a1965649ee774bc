// Package config provides configuration for crossbackup.
//
// Configuration lives in two layers:
//
//  1. Program settings (log levels, exclude patterns, archiver argument
//     sets, archive workspaces, retry and timeout knobs), managed with
//     Viper. Files are searched in /etc/crossbackup and
//     $XDG_CONFIG_HOME/crossbackup, and every key can be overridden via
//     CROSSBACKUP_* environment variables. A backups file may carry a
//     top-level "config" mapping that overrides these per run.
//
//  2. The backups file passed on the command line: a YAML document whose
//     top-level "backups" key lists the backup definitions executed in
//     declared order.
//
// Validation fails fast with errors.ErrConfig before any snapshot is
// taken; an unknown source or destination type never reaches the engine.
package config
