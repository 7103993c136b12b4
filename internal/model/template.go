package model

import "time"

// Priority of a task template (copied onto generated tasks).
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// TaskTemplate is the blueprint a recurring definition generates tasks from.
// Tags are stored as a comma-separated list.
type TaskTemplate struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint `gorm:"index"`
	Title       string
	Description string
	Priority    Priority `gorm:"default:medium"`
	Tags        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
