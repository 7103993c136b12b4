package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"recur-planner/internal/model"
)

func TestValidateRule(t *testing.T) {
	t.Parallel()

	anchor := date(2023, time.January, 4)
	end := date(2024, time.January, 4)
	three := 3
	zero := 0

	tests := []struct {
		name    string
		rule    model.RecurrenceRule
		wantErr bool
	}{
		{"daily", model.RecurrenceRule{Frequency: model.FrequencyDaily, AnchorStart: anchor}, false},
		{"weekly with both bounds", model.RecurrenceRule{Frequency: model.FrequencyWeekly, AnchorStart: anchor, EndBound: &end, CountBound: &three}, false},
		{"custom days", model.RecurrenceRule{Frequency: model.FrequencyCustom, Interval: 5, IntervalUnit: model.UnitDays, AnchorStart: anchor}, false},
		{"custom months", model.RecurrenceRule{Frequency: model.FrequencyCustom, Interval: 2, IntervalUnit: model.UnitMonths, AnchorStart: anchor}, false},

		{"missing anchor", model.RecurrenceRule{Frequency: model.FrequencyDaily}, true},
		{"unknown frequency", model.RecurrenceRule{Frequency: "yearly", AnchorStart: anchor}, true},
		{"custom without interval", model.RecurrenceRule{Frequency: model.FrequencyCustom, IntervalUnit: model.UnitDays, AnchorStart: anchor}, true},
		{"custom negative interval", model.RecurrenceRule{Frequency: model.FrequencyCustom, Interval: -2, IntervalUnit: model.UnitDays, AnchorStart: anchor}, true},
		{"custom unknown unit", model.RecurrenceRule{Frequency: model.FrequencyCustom, Interval: 2, IntervalUnit: "fortnights", AnchorStart: anchor}, true},
		{"daily with stray interval", model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 3, AnchorStart: anchor}, true},
		{"weekly with stray unit", model.RecurrenceRule{Frequency: model.FrequencyWeekly, IntervalUnit: model.UnitDays, AnchorStart: anchor}, true},
		{"zero count bound", model.RecurrenceRule{Frequency: model.FrequencyDaily, AnchorStart: anchor, CountBound: &zero}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateRule(tt.rule)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
