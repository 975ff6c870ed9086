package models

import "time"

// Task types. A requirement sits at the top of the tree, tasks under
// requirements, subtasks under tasks.
const (
	TypeRequirement = "requirement"
	TypeTask        = "task"
	TypeSubtask     = "subtask"
)

// Task statuses.
const (
	StatusNotStarted    = "not_started"
	StatusInProgress    = "in_progress"
	StatusBlocked       = "blocked"
	StatusReviewPending = "review_pending"
	StatusRevising      = "revising"
	StatusCompleted     = "completed"
)

// Task is the core work item. HierarchicalID encodes the task's position in
// the requirement tree (REQ-001, REQ-001.TSK-002, REQ-001.TSK-002.SUB-001)
// and is immutable once assigned.
type Task struct {
	ID             uint    `gorm:"primaryKey;autoIncrement"`
	HierarchicalID string  `gorm:"size:255;uniqueIndex;not null"`
	Title          string  `gorm:"size:255;not null"`
	Description    string  `gorm:"type:text"`
	Type           string  `gorm:"size:16;not null;index"`
	Status         string  `gorm:"size:50;default:not_started;index"`
	ParentID       *uint   `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Parent   *Task         `gorm:"foreignKey:ParentID"`
	Children []Task        `gorm:"foreignKey:ParentID"`
	History  []TaskHistory `gorm:"foreignKey:TaskID"`
	Comments []Comment     `gorm:"foreignKey:TaskID"`
}

// TaskHistory is an append-only record of task lifecycle events. Rows are
// never mutated; the retention sweep is the only thing that deletes them.
type TaskHistory struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TaskID     uint   `gorm:"not null;index"`
	EventType  string `gorm:"size:50;not null"`
	FromStatus string `gorm:"size:50"`
	ToStatus   string `gorm:"size:50"`
	Note       string `gorm:"type:text"`
	ChangedBy  string `gorm:"size:100"`
	CreatedAt  time.Time

	Task Task `gorm:"foreignKey:TaskID"`
}

// Comment is free-form text attached to a task, independent of the status
// machinery. Type is "review" or "note".
type Comment struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TaskID    uint   `gorm:"not null;index"`
	Type      string `gorm:"size:20;not null"`
	Body      string `gorm:"type:text;not null"`
	CreatedBy string `gorm:"size:100"`
	CreatedAt time.Time

	Task Task `gorm:"foreignKey:TaskID"`
}
