package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyunjaekim/crossbackup/internal/config"
	"github.com/hyunjaekim/crossbackup/internal/transfer"
)

func entryAt(ts time.Time) transfer.Entry {
	return transfer.Entry{
		Name:      transfer.EntryName("docs", ts),
		Prefix:    "docs",
		Timestamp: ts,
	}
}

func entriesAgedHours(now time.Time, hours ...float64) []transfer.Entry {
	entries := make([]transfer.Entry, 0, len(hours))
	for _, h := range hours {
		entries = append(entries, entryAt(now.Add(-time.Duration(h*float64(time.Hour)))))
	}
	return entries
}

func names(entries []transfer.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestComputeGenerationalExample(t *testing.T) {
	// Mid-hour so the 0.1h and 1h old entries land in different hourly
	// buckets.
	now := time.Date(2026, 1, 10, 12, 30, 0, 0, time.UTC)
	entries := entriesAgedHours(now, 0.1, 1, 2, 25, 26, 49, 400)

	plan := Compute(entries, config.RetentionSpec{
		LimitHourly: 2,
		LimitDaily:  1,
	}, now)

	// Hourly keeps the two newest hour buckets (ages 0.1 and 1). Daily
	// skips today without consuming its slot, since kept entries
	// already cover it, and keeps the newest of yesterday (age 25).
	assert.Equal(t, names(entriesAgedHours(now, 0.1, 1, 25)), names(plan.Keep))
	assert.Equal(t, names(entriesAgedHours(now, 2, 26, 49, 400)), names(plan.Delete))
}

func TestComputeMinAgeProtectsYoungEntries(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 30, 0, 0, time.UTC)
	young := entryAt(now.Add(-10 * time.Minute))
	old := entryAt(now.Add(-48 * time.Hour))

	plan := Compute([]transfer.Entry{old, young}, config.RetentionSpec{
		MinAge: 1800,
	}, now)

	assert.Equal(t, []string{young.Name}, names(plan.Keep))
	assert.Equal(t, []string{old.Name}, names(plan.Delete))
}

func TestComputeAllLimitsZeroDeletesEverything(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 30, 0, 0, time.UTC)
	entries := entriesAgedHours(now, 1, 30, 200)

	plan := Compute(entries, config.RetentionSpec{}, now)

	assert.Empty(t, plan.Keep)
	assert.Len(t, plan.Delete, 3)
}

func TestComputeMonthlyBuckets(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	jun := entryAt(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	mayNew := entryAt(time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC))
	mayOld := entryAt(time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC))
	apr := entryAt(time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC))

	plan := Compute([]transfer.Entry{apr, mayOld, jun, mayNew}, config.RetentionSpec{
		LimitMonthly: 2,
	}, now)

	// Newest per month, two months' worth.
	assert.Equal(t, []string{jun.Name, mayNew.Name}, names(plan.Keep))
	assert.Equal(t, []string{mayOld.Name, apr.Name}, names(plan.Delete))
}

func TestComputeISOWeekBuckets(t *testing.T) {
	// 2026-01-05 is a Monday; the two entries around it straddle an ISO
	// week boundary even though they are only two days apart.
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	thisWeek := entryAt(time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC))
	lastWeek := entryAt(time.Date(2026, 1, 3, 8, 0, 0, 0, time.UTC))

	plan := Compute([]transfer.Entry{lastWeek, thisWeek}, config.RetentionSpec{
		LimitWeekly: 2,
	}, now)

	assert.ElementsMatch(t, []string{thisWeek.Name, lastWeek.Name}, names(plan.Keep))
	assert.Empty(t, plan.Delete)
}

func TestComputeCoveredBucketKeepsSlot(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 30, 0, 0, time.UTC)
	// Three days, two entries on the newest day. Hourly claims the very
	// newest entry; daily must still have both slots left for the two
	// older days because the newest day is already covered.
	d0a := entryAt(now.Add(-1 * time.Hour))
	d0b := entryAt(now.Add(-3 * time.Hour))
	d1 := entryAt(now.Add(-25 * time.Hour))
	d2 := entryAt(now.Add(-49 * time.Hour))

	plan := Compute([]transfer.Entry{d2, d1, d0b, d0a}, config.RetentionSpec{
		LimitHourly: 1,
		LimitDaily:  2,
	}, now)

	assert.Equal(t, []string{d0a.Name, d1.Name, d2.Name}, names(plan.Keep))
	assert.Equal(t, []string{d0b.Name}, names(plan.Delete))
}

func TestComputeIdempotent(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 30, 0, 0, time.UTC)
	entries := entriesAgedHours(now, 0.1, 1, 2, 25, 26, 49, 400)
	spec := config.RetentionSpec{LimitHourly: 2, LimitDaily: 1}

	first := Compute(entries, spec, now)
	second := Compute(entries, spec, now)
	assert.Equal(t, names(first.Delete), names(second.Delete))
	assert.Equal(t, names(first.Keep), names(second.Keep))

	// Applying the plan and recomputing deletes nothing further.
	replay := Compute(first.Keep, spec, now)
	assert.Empty(t, replay.Delete)
	assert.Equal(t, names(first.Keep), names(replay.Keep))
}

func TestComputeEmptyInput(t *testing.T) {
	plan := Compute(nil, config.DefaultRetention(), time.Now())
	require.Empty(t, plan.Keep)
	require.Empty(t, plan.Delete)
}
