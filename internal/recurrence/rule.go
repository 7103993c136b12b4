package recurrence

import (
	"fmt"

	"recur-planner/internal/model"
)

// ValidateRule rejects malformed rules up front so NextOccurrence,
// OccurrencesBetween and Refresh stay total functions.
func ValidateRule(rule model.RecurrenceRule) error {
	if rule.AnchorStart.IsZero() {
		return fmt.Errorf("%w: anchor start date is required", ErrInvalidRule)
	}

	switch rule.Frequency {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyBiWeekly, model.FrequencyMonthly:
		if rule.Interval != 0 {
			return fmt.Errorf("%w: interval is only valid for custom frequency", ErrInvalidRule)
		}
		if rule.IntervalUnit != "" {
			return fmt.Errorf("%w: interval unit is only valid for custom frequency", ErrInvalidRule)
		}
	case model.FrequencyCustom:
		if rule.Interval < 1 {
			return fmt.Errorf("%w: custom interval must be positive, got %d", ErrInvalidRule, rule.Interval)
		}
		switch rule.IntervalUnit {
		case model.UnitDays, model.UnitWeeks, model.UnitMonths:
		default:
			return fmt.Errorf("%w: unknown interval unit %q", ErrInvalidRule, rule.IntervalUnit)
		}
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, rule.Frequency)
	}

	if rule.CountBound != nil && *rule.CountBound < 1 {
		return fmt.Errorf("%w: count bound must be positive, got %d", ErrInvalidRule, *rule.CountBound)
	}

	return nil
}
