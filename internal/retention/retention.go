// Package retention computes which remote backup entries to keep and
// which to delete under a generational timeline rule set. The decision
// is pure: callers list entries, compute a plan, then act on it.
package retention

import (
	"fmt"
	"sort"
	"time"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/transfer"
)

// Plan partitions the listed entries. Keep and Delete are disjoint and
// together cover every input entry, each ordered newest first.
type Plan struct {
	Keep   []transfer.Entry
	Delete []transfer.Entry
}

// granularity is one calendar bucket size. Buckets use the UTC calendar
// and ISO weeks.
type granularity struct {
	name  string
	key   func(t time.Time) string
	limit func(spec config.RetentionSpec) int
}

// Granularities are visited finest to coarsest so that fine buckets
// claim recent entries before a coarse bucket gets to pick one.
var granularities = []granularity{
	{
		name:  "hourly",
		key:   func(t time.Time) string { return t.Format("2006010215") },
		limit: func(s config.RetentionSpec) int { return s.LimitHourly },
	},
	{
		name:  "daily",
		key:   func(t time.Time) string { return t.Format("20060102") },
		limit: func(s config.RetentionSpec) int { return s.LimitDaily },
	},
	{
		name: "weekly",
		key: func(t time.Time) string {
			year, week := t.ISOWeek()
			return fmt.Sprintf("%04d-W%02d", year, week)
		},
		limit: func(s config.RetentionSpec) int { return s.LimitWeekly },
	},
	{
		name:  "monthly",
		key:   func(t time.Time) string { return t.Format("200601") },
		limit: func(s config.RetentionSpec) int { return s.LimitMonthly },
	},
	{
		name:  "yearly",
		key:   func(t time.Time) string { return t.Format("2006") },
		limit: func(s config.RetentionSpec) int { return s.LimitYearly },
	},
}

// Compute builds the retention plan for one destination's entries.
//
// Entries younger than the minimum age are kept unconditionally and do
// not participate in bucketing. For each granularity, entries are
// grouped into calendar buckets and the buckets walked newest first: a
// bucket that already holds a kept entry is covered and skipped without
// consuming one of the granularity's slots, otherwise the bucket's
// newest entry is kept and one slot is consumed. A limit of zero
// disables the granularity. Whatever no rule claims is deleted.
func Compute(entries []transfer.Entry, spec config.RetentionSpec, now time.Time) Plan {
	ordered := make([]transfer.Entry, len(entries))
	copy(ordered, entries)
	// Newest first, stable so exact-timestamp ties keep listing order.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.After(ordered[j].Timestamp)
	})

	kept := make([]bool, len(ordered))
	minAge := time.Duration(spec.MinAge) * time.Second

	// Indices of entries old enough to be governed by the timeline.
	var aged []int
	for i, e := range ordered {
		if now.Sub(e.Timestamp) < minAge {
			kept[i] = true
			continue
		}
		aged = append(aged, i)
	}

	for _, g := range granularities {
		limit := g.limit(spec)
		if limit <= 0 {
			continue
		}

		// Group by bucket key. aged is newest first, so the first index
		// in each bucket is the bucket's newest entry and buckets come
		// out in newest-first order.
		var order []string
		buckets := make(map[string][]int)
		for _, i := range aged {
			key := g.key(ordered[i].Timestamp.UTC())
			if _, ok := buckets[key]; !ok {
				order = append(order, key)
			}
			buckets[key] = append(buckets[key], i)
		}

		slots := limit
		for _, key := range order {
			members := buckets[key]
			if covered(kept, members) {
				continue
			}
			kept[members[0]] = true
			slots--
			if slots == 0 {
				break
			}
		}
	}

	var plan Plan
	for i, e := range ordered {
		if kept[i] {
			plan.Keep = append(plan.Keep, e)
		} else {
			plan.Delete = append(plan.Delete, e)
		}
	}
	return plan
}

func covered(kept []bool, members []int) bool {
	for _, i := range members {
		if kept[i] {
			return true
		}
	}
	return false
}
