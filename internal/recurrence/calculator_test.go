package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"recur-planner/internal/model"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrenceFixedSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		rule   model.RecurrenceRule
		anchor time.Time
		want   time.Time
	}{
		{"daily", model.RecurrenceRule{Frequency: model.FrequencyDaily}, date(2023, time.March, 15), date(2023, time.March, 16)},
		{"daily across month", model.RecurrenceRule{Frequency: model.FrequencyDaily}, date(2023, time.February, 28), date(2023, time.March, 1)},
		{"daily into leap day", model.RecurrenceRule{Frequency: model.FrequencyDaily}, date(2024, time.February, 28), date(2024, time.February, 29)},
		{"weekly", model.RecurrenceRule{Frequency: model.FrequencyWeekly}, date(2023, time.January, 4), date(2023, time.January, 11)},
		{"weekly across year", model.RecurrenceRule{Frequency: model.FrequencyWeekly}, date(2023, time.December, 29), date(2024, time.January, 5)},
		{"biweekly", model.RecurrenceRule{Frequency: model.FrequencyBiWeekly}, date(2023, time.January, 25), date(2023, time.February, 8)},
		{"custom days", model.RecurrenceRule{Frequency: model.FrequencyCustom, Interval: 10, IntervalUnit: model.UnitDays}, date(2023, time.June, 25), date(2023, time.July, 5)},
		{"custom weeks", model.RecurrenceRule{Frequency: model.FrequencyCustom, Interval: 3, IntervalUnit: model.UnitWeeks}, date(2023, time.January, 1), date(2023, time.January, 22)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NextOccurrence(tt.rule, tt.anchor))
		})
	}
}

func TestNextOccurrenceMonthlyClamping(t *testing.T) {
	t.Parallel()

	monthly := model.RecurrenceRule{Frequency: model.FrequencyMonthly}

	tests := []struct {
		name   string
		rule   model.RecurrenceRule
		anchor time.Time
		want   time.Time
	}{
		{"day preserved", monthly, date(2023, time.January, 15), date(2023, time.February, 15)},
		{"jan 31 clamps to feb 28", monthly, date(2023, time.January, 31), date(2023, time.February, 28)},
		{"jan 31 clamps to leap feb 29", monthly, date(2024, time.January, 31), date(2024, time.February, 29)},
		{"mar 31 clamps to apr 30", monthly, date(2023, time.March, 31), date(2023, time.April, 30)},
		{"dec rolls into next year", monthly, date(2023, time.December, 31), date(2024, time.January, 31)},
		{
			"custom two months clamps",
			model.RecurrenceRule{Frequency: model.FrequencyCustom, Interval: 2, IntervalUnit: model.UnitMonths},
			date(2023, time.December, 31),
			date(2024, time.February, 29),
		},
		{
			"custom six months",
			model.RecurrenceRule{Frequency: model.FrequencyCustom, Interval: 6, IntervalUnit: model.UnitMonths},
			date(2023, time.August, 31),
			date(2024, time.February, 29),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NextOccurrence(tt.rule, tt.anchor))
		})
	}
}

func TestNextOccurrencePreservesClock(t *testing.T) {
	t.Parallel()

	anchor := time.Date(2023, time.January, 31, 9, 30, 15, 0, time.UTC)

	got := NextOccurrence(model.RecurrenceRule{Frequency: model.FrequencyMonthly}, anchor)
	assert.Equal(t, time.Date(2023, time.February, 28, 9, 30, 15, 0, time.UTC), got)

	got = NextOccurrence(model.RecurrenceRule{Frequency: model.FrequencyDaily}, anchor)
	assert.Equal(t, time.Date(2023, time.February, 1, 9, 30, 15, 0, time.UTC), got)
}
