package recurrence

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recur-planner/internal/model"
)

// countByWalking is the reference implementation: start is the first
// occurrence, then NextOccurrence until past end.
func countByWalking(rule model.RecurrenceRule, start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	count := 0
	for cur := start; !cur.After(end); cur = NextOccurrence(rule, cur) {
		count++
	}
	return count
}

func TestOccurrencesBetweenMatchesWalking(t *testing.T) {
	t.Parallel()

	rules := []model.RecurrenceRule{
		{Frequency: model.FrequencyDaily},
		{Frequency: model.FrequencyWeekly},
		{Frequency: model.FrequencyBiWeekly},
		{Frequency: model.FrequencyMonthly},
		{Frequency: model.FrequencyCustom, Interval: 1, IntervalUnit: model.UnitDays},
		{Frequency: model.FrequencyCustom, Interval: 3, IntervalUnit: model.UnitDays},
		{Frequency: model.FrequencyCustom, Interval: 11, IntervalUnit: model.UnitDays},
		{Frequency: model.FrequencyCustom, Interval: 2, IntervalUnit: model.UnitWeeks},
		{Frequency: model.FrequencyCustom, Interval: 5, IntervalUnit: model.UnitWeeks},
		{Frequency: model.FrequencyCustom, Interval: 1, IntervalUnit: model.UnitMonths},
		{Frequency: model.FrequencyCustom, Interval: 2, IntervalUnit: model.UnitMonths},
		{Frequency: model.FrequencyCustom, Interval: 7, IntervalUnit: model.UnitMonths},
	}

	// Jan 31 anchor maximizes month clamping; the range spans two leap
	// and non-leap Februaries.
	starts := []time.Time{
		date(2023, time.January, 31),
		date(2023, time.March, 1),
		time.Date(2024, time.February, 29, 18, 45, 0, 0, time.UTC),
	}

	for _, rule := range rules {
		for _, start := range starts {
			rule, start := rule, start
			name := fmt.Sprintf("%s/%d%s/%s", rule.Frequency, rule.Interval, rule.IntervalUnit, start.Format("2006-01-02"))
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				// Sweep ends day by day across more than two years so every
				// boundary alignment is exercised.
				for offset := 0; offset <= 800; offset += 7 {
					end := start.AddDate(0, 0, offset)
					want := countByWalking(rule, start, end)
					got := OccurrencesBetween(rule, start, end)
					require.Equal(t, want, got, "end=%s", end.Format("2006-01-02"))
				}
			})
		}
	}
}

func TestOccurrencesBetweenBoundaries(t *testing.T) {
	t.Parallel()

	weekly := model.RecurrenceRule{Frequency: model.FrequencyWeekly}
	start := date(2023, time.January, 4)

	assert.Equal(t, 0, OccurrencesBetween(weekly, start, start.Add(-time.Second)), "end before start")
	assert.Equal(t, 1, OccurrencesBetween(weekly, start, start), "start itself counts")
	assert.Equal(t, 1, OccurrencesBetween(weekly, start, start.AddDate(0, 0, 6)), "one day short of second occurrence")
	assert.Equal(t, 2, OccurrencesBetween(weekly, start, start.AddDate(0, 0, 7)), "boundary occurrence is inclusive")

	monthly := model.RecurrenceRule{Frequency: model.FrequencyMonthly}
	jan31 := date(2023, time.January, 31)
	assert.Equal(t, 2, OccurrencesBetween(monthly, jan31, date(2023, time.February, 28)), "clamped feb occurrence counts")
	assert.Equal(t, 2, OccurrencesBetween(monthly, jan31, date(2023, time.March, 27)), "next occurrence steps from the clamped date")
}

func TestOccurrencesBetweenSubDayPrecision(t *testing.T) {
	t.Parallel()

	daily := model.RecurrenceRule{Frequency: model.FrequencyDaily}
	start := time.Date(2023, time.May, 10, 12, 0, 0, 0, time.UTC)

	// End lands on the right calendar day but an hour before the
	// occurrence's time of day: that occurrence has not happened yet.
	assert.Equal(t, 3, OccurrencesBetween(daily, start, start.AddDate(0, 0, 3).Add(-time.Hour)))
	assert.Equal(t, 4, OccurrencesBetween(daily, start, start.AddDate(0, 0, 3)))
}
