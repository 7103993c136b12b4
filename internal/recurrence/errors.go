package recurrence

import "errors"

var (
	// ErrInvalidRule is returned by ValidateRule for malformed rules.
	// Validation is front-loaded so the calculator and counter never see
	// a corrupt rule.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrDefinitionInactive is returned by Generate for a deactivated
	// definition. Never a silent no-op.
	ErrDefinitionInactive = errors.New("definition is inactive")

	// ErrNotYetDue is returned by Generate when the next due date is
	// unset or still in the future. Callers should Refresh first.
	ErrNotYetDue = errors.New("definition is not yet due")

	// ErrTemplateUnavailable is returned by Generate when the referenced
	// template could not be resolved.
	ErrTemplateUnavailable = errors.New("task template unavailable")
)
