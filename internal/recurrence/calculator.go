package recurrence

import (
	"time"

	"recur-planner/internal/model"
)

// NextOccurrence returns the occurrence that follows anchor under the rule.
// Pure and total over validated rules. Note the first occurrence of a
// definition is the rule's anchor start itself, not anchor-plus-one-step;
// that decision belongs to Refresh, not here.
func NextOccurrence(rule model.RecurrenceRule, anchor time.Time) time.Time {
	switch rule.Frequency {
	case model.FrequencyDaily:
		return anchor.AddDate(0, 0, 1)
	case model.FrequencyWeekly:
		return anchor.AddDate(0, 0, 7)
	case model.FrequencyBiWeekly:
		return anchor.AddDate(0, 0, 14)
	case model.FrequencyMonthly:
		return addMonthsClamped(anchor, 1)
	case model.FrequencyCustom:
		switch rule.IntervalUnit {
		case model.UnitDays:
			return anchor.AddDate(0, 0, rule.Interval)
		case model.UnitWeeks:
			return anchor.AddDate(0, 0, 7*rule.Interval)
		case model.UnitMonths:
			return addMonthsClamped(anchor, rule.Interval)
		}
	}
	// Unreachable for rules that passed ValidateRule.
	return anchor
}

// addMonthsClamped advances by whole calendar months, keeping the day of
// month where the target month has it and clamping to the target month's
// last day otherwise (Jan 31 -> Feb 28, or Feb 29 in a leap year).
// time.AddDate would normalize Jan 31 + 1 month into March instead.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(target.Month(), target.Year()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
