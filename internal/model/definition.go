package model

import "time"

// RecurringTaskDefinition binds a task template to a recurrence rule and
// tracks where the rule currently stands. Active=false is terminal: the
// definition produces nothing further until a user reactivates it.
// NextDueAt=nil means the next occurrence has not been computed yet.
type RecurringTaskDefinition struct {
	ID              uint           `gorm:"primaryKey"`
	UserID          uint           `gorm:"index"`
	TemplateID      uint           `gorm:"index"`
	Rule            RecurrenceRule `gorm:"embedded;embeddedPrefix:rule_"`
	Active          bool           `gorm:"default:true"`
	LastGeneratedAt *time.Time
	NextDueAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
