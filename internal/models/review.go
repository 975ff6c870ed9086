package models

import "time"

// Review statuses.
const (
	ReviewPending    = "pending"
	ReviewInProgress = "in_progress"
	ReviewCompleted  = "completed"
	ReviewRejected   = "rejected"
	ReviewCancelled  = "cancelled"
)

// Review types.
const (
	ReviewTypeCode        = "code_review"
	ReviewTypeDesign      = "design_review"
	ReviewTypeRequirement = "requirement_review"
	ReviewTypeTest        = "test_review"
	ReviewTypeDocument    = "document_review"
)

// Review tracks a review cycle for a task, with timestamps for each phase.
type Review struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	TaskID      uint   `gorm:"not null;index"`
	ReviewType  string `gorm:"size:50;not null"`
	Status      string `gorm:"size:20;default:pending"`
	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Reviewer    string `gorm:"size:255"`
	ReviewNotes string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	ReviewStartedAt     *time.Time
	ReviewCompletedAt   *time.Time
	ResponseCompletedAt *time.Time

	Task      Task             `gorm:"foreignKey:TaskID"`
	Comments  []ReviewComment  `gorm:"foreignKey:ReviewID"`
	Responses []ReviewResponse `gorm:"foreignKey:ReviewID"`
}

// ReviewComment is reviewer feedback on a review. CommentType is one of
// question, suggestion, issue, approval.
type ReviewComment struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ReviewID    uint   `gorm:"not null;index"`
	CommentType string `gorm:"size:50;not null"`
	Content     string `gorm:"type:text;not null"`
	LineNumber  *int
	FilePath    string `gorm:"size:500"`
	Author      string `gorm:"size:255"`
	CreatedAt   time.Time

	Review Review `gorm:"foreignKey:ReviewID"`
}

// ReviewResponse is the author's reply to review feedback. ResponseType is
// one of acknowledgment, fix, discussion, rejection.
type ReviewResponse struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ReviewID     uint   `gorm:"not null;index"`
	CommentID    *uint  `gorm:"index"`
	ResponseType string `gorm:"size:50;not null"`
	Content      string `gorm:"type:text;not null"`
	Author       string `gorm:"size:255"`
	CreatedAt    time.Time

	ResponseCompletedAt *time.Time

	Review  Review         `gorm:"foreignKey:ReviewID"`
	Comment *ReviewComment `gorm:"foreignKey:CommentID"`
}
