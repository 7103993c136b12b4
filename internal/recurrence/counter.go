package recurrence

import (
	"time"

	"recur-planner/internal/model"
)

// OccurrencesBetween counts the occurrences the rule produces in
// [start, end], both boundaries inclusive, with the first occurrence at
// start itself. Returns 0 when end precedes start.
//
// Day- and week-stepped rules have a fixed period in whole days, so the
// count reduces to exact integer division. Month-stepped rules have no
// fixed period (28-31 days) and are counted by walking NextOccurrence;
// dividing by an average month length would drift over long ranges.
func OccurrencesBetween(rule model.RecurrenceRule, start, end time.Time) int {
	if end.Before(start) {
		return 0
	}

	if days, ok := fixedDayStep(rule); ok {
		return wholeDaysBetween(start, end)/days + 1
	}

	count := 1
	for cur := start; ; {
		cur = NextOccurrence(rule, cur)
		if cur.After(end) {
			break
		}
		count++
	}
	return count
}

// fixedDayStep reports the rule's period in whole days, when it has one.
func fixedDayStep(rule model.RecurrenceRule) (int, bool) {
	switch rule.Frequency {
	case model.FrequencyDaily:
		return 1, true
	case model.FrequencyWeekly:
		return 7, true
	case model.FrequencyBiWeekly:
		return 14, true
	case model.FrequencyCustom:
		switch rule.IntervalUnit {
		case model.UnitDays:
			return rule.Interval, true
		case model.UnitWeeks:
			return 7 * rule.Interval, true
		}
	}
	return 0, false
}

// wholeDaysBetween counts complete calendar days from a to b, matching
// repeated AddDate(0,0,1) application: the calendar-date difference,
// minus one when b's time of day is earlier than a's.
func wholeDaysBetween(a, b time.Time) int {
	days := int(civilDay(b) - civilDay(a))
	if timeOfDay(b) < timeOfDay(a) {
		days--
	}
	return days
}

func civilDay(t time.Time) int64 {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func timeOfDay(t time.Time) time.Duration {
	hour, min, sec := t.Clock()
	return time.Duration(hour)*time.Hour +
		time.Duration(min)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(t.Nanosecond())
}
