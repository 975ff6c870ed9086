// Package summary maintains per-task capsules: a 140-character summary with
// acceptance criteria, and the outline card that joins the capsule with the
// task record and its linked artifact URIs.
package summary

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nsawada/reqtrack/internal/cas"
	"github.com/nsawada/reqtrack/internal/models"
	"github.com/nsawada/reqtrack/internal/task"
)

// ErrNotFound reports a task with no stored summary.
var ErrNotFound = errors.New("summary: not found")

// Card is the outline view of a task: identity, capsule, and the URIs of
// its role-tagged artifacts.
type Card struct {
	HierarchicalID string            `json:"hierarchical_id"`
	Title          string            `json:"title"`
	Summary        string            `json:"summary"`
	Acceptance     []string          `json:"acceptance"`
	DependsOn      []string          `json:"depends_on"`
	URIs           map[string]string `json:"uris"`
}

// Upsert stores or replaces the summary for a task. Summary text longer than
// 140 characters is rejected.
func Upsert(db *gorm.DB, taskHID, summary140 string, acceptance []string) (*models.TaskSummary, error) {
	if len(summary140) > 140 {
		return nil, fmt.Errorf("summary: text exceeds 140 characters (%d)", len(summary140))
	}
	acceptanceJSON := ""
	if acceptance != nil {
		data, err := json.Marshal(acceptance)
		if err != nil {
			return nil, fmt.Errorf("summary: marshal acceptance for %s: %w", taskHID, err)
		}
		acceptanceJSON = string(data)
	}

	var existing models.TaskSummary
	err := db.Where("task_hid = ?", taskHID).First(&existing).Error
	if err == nil {
		existing.Summary140 = summary140
		existing.AcceptanceJSON = acceptanceJSON
		if err := db.Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("summary: update %s: %w", taskHID, err)
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("summary: lookup %s: %w", taskHID, err)
	}

	created := models.TaskSummary{
		TaskHID:        taskHID,
		Summary140:     summary140,
		AcceptanceJSON: acceptanceJSON,
	}
	if err := db.Create(&created).Error; err != nil {
		return nil, fmt.Errorf("summary: create %s: %w", taskHID, err)
	}
	return &created, nil
}

// Get loads the summary for a task.
func Get(db *gorm.DB, taskHID string) (*models.TaskSummary, error) {
	var s models.TaskSummary
	if err := db.Where("task_hid = ?", taskHID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, taskHID)
		}
		return nil, fmt.Errorf("summary: get %s: %w", taskHID, err)
	}
	return &s, nil
}

// Acceptance decodes a summary's acceptance criteria list.
func Acceptance(s *models.TaskSummary) []string {
	if s == nil || s.AcceptanceJSON == "" {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal([]byte(s.AcceptanceJSON), &items); err != nil {
		return []string{}
	}
	return items
}

// Outline builds the outline card for a task. A missing summary falls back
// to the first 140 characters of the task description; spec, test, and
// context artifact links contribute their URIs.
func Outline(db *gorm.DB, store *cas.Store, taskHID string) (*Card, error) {
	t, err := task.GetByHierarchicalID(db, taskHID)
	if err != nil {
		return nil, err
	}

	text := ""
	var acceptance []string
	s, err := Get(db, taskHID)
	switch {
	case err == nil:
		text = s.Summary140
		acceptance = Acceptance(s)
	case errors.Is(err, ErrNotFound):
		text = t.Description
		if len(text) > 140 {
			text = text[:140]
		}
		acceptance = []string{}
	default:
		return nil, err
	}

	artifacts, err := store.TaskArtifacts(taskHID, "")
	if err != nil {
		return nil, err
	}
	uris := map[string]string{}
	for _, a := range artifacts {
		switch a.Role {
		case "spec":
			uris["spec"] = a.URI
		case "test":
			uris["tests_dir"] = a.URI
		case "context":
			uris["context_pack"] = a.URI
		}
	}

	return &Card{
		HierarchicalID: taskHID,
		Title:          t.Title,
		Summary:        text,
		Acceptance:     acceptance,
		DependsOn:      []string{},
		URIs:           uris,
	}, nil
}
