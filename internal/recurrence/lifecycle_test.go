package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recur-planner/internal/model"
)

func weeklyDefinition(bounds func(*model.RecurrenceRule)) model.RecurringTaskDefinition {
	rule := model.RecurrenceRule{
		Frequency:   model.FrequencyWeekly,
		AnchorStart: date(2023, time.January, 4),
	}
	if bounds != nil {
		bounds(&rule)
	}
	return model.RecurringTaskDefinition{
		ID:         1,
		UserID:     1,
		TemplateID: 42,
		Rule:       rule,
		Active:     true,
	}
}

func testTemplate() *model.TaskTemplate {
	return &model.TaskTemplate{
		ID:          42,
		UserID:      1,
		Title:       "Water the plants",
		Description: "Balcony and kitchen",
		Priority:    model.PriorityMedium,
		Tags:        "home,chores",
	}
}

func TestRefreshFirstOccurrenceIsAnchorStart(t *testing.T) {
	t.Parallel()

	def := weeklyDefinition(nil)
	got := Refresh(def, date(2023, time.January, 4))

	require.NotNil(t, got.NextDueAt)
	assert.Equal(t, date(2023, time.January, 4), *got.NextDueAt)
	assert.True(t, got.Active)
}

func TestRefreshNoopBeforeDue(t *testing.T) {
	t.Parallel()

	def := weeklyDefinition(nil)
	def = Refresh(def, date(2023, time.January, 1))

	require.NotNil(t, def.NextDueAt)
	// Due date already known and in the future: nothing to do.
	again := Refresh(def, date(2023, time.January, 2))
	assert.Equal(t, def, again)
}

func TestRefreshIdempotent(t *testing.T) {
	t.Parallel()

	now := date(2023, time.February, 1)

	fresh := weeklyDefinition(nil)
	generated := weeklyDefinition(nil)
	last := date(2023, time.January, 18)
	generated.LastGeneratedAt = &last

	for _, def := range []model.RecurringTaskDefinition{fresh, generated} {
		once := Refresh(def, now)
		twice := Refresh(once, now)
		assert.Equal(t, once, twice)
	}
}

func TestRefreshInactiveIsTerminal(t *testing.T) {
	t.Parallel()

	def := weeklyDefinition(nil)
	def.Active = false

	got := Refresh(def, date(2023, time.June, 1))
	assert.False(t, got.Active)
	assert.Nil(t, got.NextDueAt)
}

func TestRefreshEndBoundBeforeAnchorDeactivatesImmediately(t *testing.T) {
	t.Parallel()

	def := weeklyDefinition(func(r *model.RecurrenceRule) {
		end := date(2023, time.January, 1)
		r.EndBound = &end
	})

	got := Refresh(def, date(2023, time.January, 4))
	assert.False(t, got.Active)
	assert.Nil(t, got.NextDueAt)
}

func TestRefreshOccurrenceOnEndBoundStillDue(t *testing.T) {
	t.Parallel()

	// The bound is exclusive-after: an occurrence landing exactly on it
	// is still produced.
	def := weeklyDefinition(func(r *model.RecurrenceRule) {
		end := date(2023, time.January, 4)
		r.EndBound = &end
	})

	got := Refresh(def, date(2023, time.January, 4))
	require.NotNil(t, got.NextDueAt)
	assert.Equal(t, date(2023, time.January, 4), *got.NextDueAt)

	// One generation later the next candidate falls past the bound.
	task, got, err := Generate(got, testTemplate(), date(2023, time.January, 4))
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotStarted, task.Status)

	got = Refresh(got, date(2023, time.January, 11))
	assert.False(t, got.Active)
	assert.Nil(t, got.NextDueAt)
}

func TestCountBoundProducesExactly(t *testing.T) {
	t.Parallel()

	count := 3
	def := weeklyDefinition(func(r *model.RecurrenceRule) {
		r.CountBound = &count
	})

	now := def.Rule.AnchorStart
	generated := 0
	for i := 0; i < 10; i++ {
		def = Refresh(def, now)
		if !def.Active {
			break
		}
		require.NotNil(t, def.NextDueAt, "active definition must have a due date after refresh")

		var err error
		_, def, err = Generate(def, testTemplate(), *def.NextDueAt)
		require.NoError(t, err)
		generated++
		now = NextOccurrence(def.Rule, now)
	}

	assert.Equal(t, 3, generated)
	assert.False(t, def.Active)

	_, _, err := Generate(def, testTemplate(), now)
	assert.ErrorIs(t, err, ErrDefinitionInactive)
}

func TestCountBoundOfOneProducesOne(t *testing.T) {
	t.Parallel()

	count := 1
	def := weeklyDefinition(func(r *model.RecurrenceRule) {
		r.CountBound = &count
	})

	def = Refresh(def, def.Rule.AnchorStart)
	require.True(t, def.Active)
	require.NotNil(t, def.NextDueAt)

	_, def, err := Generate(def, testTemplate(), *def.NextDueAt)
	require.NoError(t, err)

	def = Refresh(def, date(2023, time.January, 11))
	assert.False(t, def.Active)
}

func TestGenerateGuards(t *testing.T) {
	t.Parallel()

	t.Run("inactive", func(t *testing.T) {
		t.Parallel()
		def := weeklyDefinition(nil)
		def.Active = false
		_, _, err := Generate(def, testTemplate(), date(2023, time.June, 1))
		assert.ErrorIs(t, err, ErrDefinitionInactive)
	})

	t.Run("never refreshed", func(t *testing.T) {
		t.Parallel()
		def := weeklyDefinition(nil)
		_, _, err := Generate(def, testTemplate(), date(2023, time.June, 1))
		assert.ErrorIs(t, err, ErrNotYetDue)
	})

	t.Run("due in the future", func(t *testing.T) {
		t.Parallel()
		def := Refresh(weeklyDefinition(nil), date(2023, time.January, 1))
		_, _, err := Generate(def, testTemplate(), date(2023, time.January, 3))
		assert.ErrorIs(t, err, ErrNotYetDue)
	})

	t.Run("missing template", func(t *testing.T) {
		t.Parallel()
		def := Refresh(weeklyDefinition(nil), date(2023, time.January, 4))
		_, _, err := Generate(def, nil, date(2023, time.January, 4))
		assert.ErrorIs(t, err, ErrTemplateUnavailable)
	})
}

func TestGenerateSnapshotsTemplate(t *testing.T) {
	t.Parallel()

	def := Refresh(weeklyDefinition(nil), date(2023, time.January, 4))
	tpl := testTemplate()

	task, updated, err := Generate(def, tpl, date(2023, time.January, 4))
	require.NoError(t, err)

	assert.Equal(t, tpl.Title, task.Title)
	assert.Equal(t, tpl.Description, task.Description)
	assert.Equal(t, tpl.Priority, task.Priority)
	assert.Equal(t, tpl.Tags, task.Tags)
	assert.Equal(t, model.StatusNotStarted, task.Status)
	require.NotNil(t, task.DueAt)
	assert.Equal(t, date(2023, time.January, 4), *task.DueAt)
	require.NotNil(t, task.DefinitionID)
	assert.Equal(t, def.ID, *task.DefinitionID)

	require.NotNil(t, updated.LastGeneratedAt)
	assert.Equal(t, date(2023, time.January, 4), *updated.LastGeneratedAt)
	assert.Nil(t, updated.NextDueAt)
}

// The full weekly walk: refresh, generate, refresh again a week later.
func TestWeeklyEndToEnd(t *testing.T) {
	t.Parallel()

	def := weeklyDefinition(nil)

	def = Refresh(def, date(2023, time.January, 4))
	require.NotNil(t, def.NextDueAt)
	assert.Equal(t, date(2023, time.January, 4), *def.NextDueAt)

	task, def, err := Generate(def, testTemplate(), date(2023, time.January, 4))
	require.NoError(t, err)
	assert.Equal(t, date(2023, time.January, 4), *task.DueAt)
	assert.Equal(t, date(2023, time.January, 4), *def.LastGeneratedAt)
	assert.Nil(t, def.NextDueAt)

	def = Refresh(def, date(2023, time.January, 11))
	require.NotNil(t, def.NextDueAt)
	assert.Equal(t, date(2023, time.January, 11), *def.NextDueAt)
}

func TestMonthlyLifecycleClampsAcrossFebruary(t *testing.T) {
	t.Parallel()

	def := model.RecurringTaskDefinition{
		ID:         2,
		UserID:     1,
		TemplateID: 42,
		Rule: model.RecurrenceRule{
			Frequency:   model.FrequencyMonthly,
			AnchorStart: date(2023, time.January, 31),
		},
		Active: true,
	}

	def = Refresh(def, date(2023, time.January, 31))
	_, def, err := Generate(def, testTemplate(), date(2023, time.January, 31))
	require.NoError(t, err)

	def = Refresh(def, date(2023, time.February, 28))
	require.NotNil(t, def.NextDueAt)
	assert.Equal(t, date(2023, time.February, 28), *def.NextDueAt)
}
