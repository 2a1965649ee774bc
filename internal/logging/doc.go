// Package logging provides slog-based logging for the crossbackup CLI.
//
// The default handler produces colorized single-line text on TTYs and
// plain text elsewhere. A JSON handler is available for --log-format=json
// and for --log-file output; MultiHandler combines both.
package logging
