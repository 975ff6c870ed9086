package models

import "time"

// Artifact is a content-addressed blob stored in the CAS. The SHA256 column
// is the address; storing identical bytes twice yields the same row.
type Artifact struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	SHA256        string `gorm:"size:64;uniqueIndex;not null"`
	MediaType     string `gorm:"size:100;not null"`
	BytesSize     int64  `gorm:"not null"`
	SourceTaskHID string `gorm:"column:source_task_hid;size:255"`
	Purpose       string `gorm:"size:50"`
	CreatedAt     time.Time

	TaskLinks []TaskArtifactLink `gorm:"foreignKey:ArtifactID"`
}

// TaskArtifactLink attaches an artifact to a task under a role
// (test, log, artifact, spec, patch). The (task, artifact, role) triple is
// unique so a repeated link is a no-op.
type TaskArtifactLink struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TaskHID    string `gorm:"column:task_hid;size:255;not null;index;uniqueIndex:uniq_task_artifact_role"`
	ArtifactID uint   `gorm:"not null;index;uniqueIndex:uniq_task_artifact_role"`
	Role       string `gorm:"size:50;not null;uniqueIndex:uniq_task_artifact_role"`
	CreatedAt  time.Time

	Artifact Artifact `gorm:"foreignKey:ArtifactID"`
}

// TaskSummary is a one-per-task capsule: a 140-character summary plus the
// acceptance criteria as a JSON array of strings.
type TaskSummary struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	TaskHID        string `gorm:"column:task_hid;size:255;uniqueIndex;not null"`
	Summary140     string `gorm:"size:140;not null"`
	AcceptanceJSON string `gorm:"type:text"`
	UpdatedAt      time.Time
}
