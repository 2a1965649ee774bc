package transfer

import (
	"sort"
	"strings"
	"time"
)

// entryTimeFormat is the compact UTC timestamp embedded in remote entry
// names. The trailing Z is literal; timestamps are always UTC.
const entryTimeFormat = "20060102T150405Z"

// Entry is one previously completed backup as seen from the destination:
// a read projection, never owned beyond one invocation.
type Entry struct {
	// Name is the remote entry name, e.g. photos_20260830T120000Z.7z.
	Name string

	// Prefix is the backup definition name the entry belongs to.
	Prefix string

	// Timestamp is when the backup was taken, parsed from the name.
	Timestamp time.Time

	// IsDir distinguishes directory uploads from archive artifacts.
	IsDir bool
}

// EntryName builds the remote name for a new backup of the given
// definition, without archive extension.
func EntryName(prefix string, ts time.Time) string {
	return prefix + "_" + ts.UTC().Format(entryTimeFormat)
}

// ParseEntryName extracts the timestamp from a remote name. The second
// return is false when the name does not belong to prefix or does not
// follow the naming convention; such entries are invisible to listing
// and retention.
func ParseEntryName(prefix, name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"_")
	if !ok {
		return time.Time{}, false
	}
	// Strip the archive extension, if any.
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		rest = rest[:i]
	}
	ts, err := time.ParseInLocation(entryTimeFormat, rest, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// sortEntries orders entries by timestamp ascending, stable so that
// exact-timestamp ties keep their listing order.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
