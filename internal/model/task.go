package model

import "time"

// Status of a materialized task.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusDone       Status = "done"
)

// Task is a concrete task materialized from a recurring definition.
// Title/description/priority/tags are a snapshot of the template at
// generation time; later template edits do not touch existing tasks.
type Task struct {
	ID           uint  `gorm:"primaryKey"`
	UserID       uint  `gorm:"index"`
	DefinitionID *uint `gorm:"index"`
	TemplateID   uint
	Title        string
	Description  string
	Priority     Priority
	Tags         string
	DueAt        *time.Time
	Status       Status `gorm:"default:not_started"`
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
