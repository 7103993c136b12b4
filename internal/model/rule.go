package model

import "time"

// Frequency tells how often a recurring definition produces occurrences.
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiWeekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyCustom   Frequency = "custom"
)

// IntervalUnit is the step unit for custom-frequency rules.
type IntervalUnit string

const (
	UnitDays   IntervalUnit = "days"
	UnitWeeks  IntervalUnit = "weeks"
	UnitMonths IntervalUnit = "months"
)

// RecurrenceRule describes when a definition is due and when it stops.
// Interval and IntervalUnit are meaningful only for FrequencyCustom.
// EndBound stops the rule once an occurrence would fall after it;
// CountBound caps the total number of occurrences. Both may be set,
// whichever fires first wins.
type RecurrenceRule struct {
	Frequency    Frequency
	Interval     int
	IntervalUnit IntervalUnit
	AnchorStart  time.Time
	EndBound     *time.Time
	CountBound   *int
}
