package recurrence

import (
	"time"

	"recur-planner/internal/model"
)

// Refresh recomputes a definition's next due date, deactivating it when
// the rule's lifetime has ended. Pure: operates on the passed snapshot
// and returns a new one. Idempotent for a fixed now; callers may invoke
// it opportunistically and redundantly.
//
// A definition that has never generated is due at the rule's anchor start
// itself; afterwards each occurrence steps from the last generation.
func Refresh(def model.RecurringTaskDefinition, now time.Time) model.RecurringTaskDefinition {
	if !def.Active {
		return def
	}
	if def.NextDueAt != nil && now.Before(*def.NextDueAt) {
		return def
	}

	candidate := def.Rule.AnchorStart
	if def.LastGeneratedAt != nil {
		candidate = NextOccurrence(def.Rule, *def.LastGeneratedAt)
	}

	// End-date bound first, then count bound.
	if def.Rule.EndBound != nil && candidate.After(*def.Rule.EndBound) {
		def.Active = false
		def.NextDueAt = nil
		return def
	}
	if def.Rule.CountBound != nil && GeneratedCount(def) >= *def.Rule.CountBound {
		def.Active = false
		def.NextDueAt = nil
		return def
	}

	def.NextDueAt = &candidate
	return def
}

// GeneratedCount reports how many occurrences the definition has consumed
// so far: zero before the first generation, otherwise the occurrences the
// rule produced between its anchor and the last generation.
func GeneratedCount(def model.RecurringTaskDefinition) int {
	if def.LastGeneratedAt == nil {
		return 0
	}
	return OccurrencesBetween(def.Rule, def.Rule.AnchorStart, *def.LastGeneratedAt)
}

// Generate materializes the currently due occurrence into an unsaved task
// snapshot of the template and advances the definition: last generation is
// stamped with now and the next due date is cleared, so the following
// Refresh computes the next occurrence from this new anchor.
//
// Pure apart from the returned values; persisting both the task and the
// updated definition is the caller's job. Generate is not commutative:
// callers must serialize concurrent calls per definition id, or two racing
// calls would materialize the same occurrence twice.
func Generate(def model.RecurringTaskDefinition, tpl *model.TaskTemplate, now time.Time) (model.Task, model.RecurringTaskDefinition, error) {
	if !def.Active {
		return model.Task{}, def, ErrDefinitionInactive
	}
	if def.NextDueAt == nil || now.Before(*def.NextDueAt) {
		return model.Task{}, def, ErrNotYetDue
	}
	if tpl == nil {
		return model.Task{}, def, ErrTemplateUnavailable
	}

	defID := def.ID
	due := *def.NextDueAt
	task := model.Task{
		UserID:       def.UserID,
		DefinitionID: &defID,
		TemplateID:   tpl.ID,
		Title:        tpl.Title,
		Description:  tpl.Description,
		Priority:     tpl.Priority,
		Tags:         tpl.Tags,
		DueAt:        &due,
		Status:       model.StatusNotStarted,
	}

	generatedAt := now
	def.LastGeneratedAt = &generatedAt
	def.NextDueAt = nil

	return task, def, nil
}
