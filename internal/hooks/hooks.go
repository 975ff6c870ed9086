// Package hooks produces auxiliary artifacts on committed status
// transitions. The transition engine treats every error from here as
// non-fatal; nothing in this package can fail a status change.
package hooks

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nsawada/reqtrack/internal/cas"
	"github.com/nsawada/reqtrack/internal/models"
)

// Service generates and links transition artifacts through the CAS.
type Service struct {
	store *cas.Store
}

// New creates a hook service backed by the given artifact store.
func New(store *cas.Store) *Service {
	return &Service{store: store}
}

// HandleTransition dispatches on the committed transition. Bindings:
// not_started→in_progress produces a failing-test template, any
// →review_pending a test execution log, any →completed a manifest of linked
// artifacts, any →revising a revision guide.
func (s *Service) HandleTransition(t *models.Task, fromStatus, toStatus, reason string) error {
	log.Printf("hooks: %s transition %s → %s", t.HierarchicalID, fromStatus, toStatus)

	switch {
	case fromStatus == models.StatusNotStarted && toStatus == models.StatusInProgress:
		return s.storeAndLink(t, []byte(redTestTemplate(t)), "text/x-go", "test", "test")
	case toStatus == models.StatusReviewPending:
		return s.storeAndLink(t, []byte(testExecutionLog(t)), "text/plain", "log", "log")
	case toStatus == models.StatusCompleted:
		manifest, err := s.manifest(t)
		if err != nil {
			return err
		}
		return s.storeAndLink(t, manifest, "application/json", "artifact", "artifact")
	case toStatus == models.StatusRevising:
		return s.storeAndLink(t, []byte(revisionGuide(t, reason)), "text/markdown", "log", "log")
	}
	return nil
}

func (s *Service) storeAndLink(t *models.Task, content []byte, mediaType, purpose, role string) error {
	hash, err := s.store.StoreBytes(content, mediaType, t.HierarchicalID, purpose)
	if err != nil {
		return fmt.Errorf("hooks: store %s artifact for %s: %w", purpose, t.HierarchicalID, err)
	}
	if err := s.store.Link(t.HierarchicalID, hash, role); err != nil {
		return fmt.Errorf("hooks: link %s artifact for %s: %w", role, t.HierarchicalID, err)
	}
	return nil
}

// manifestEntry is one artifact in a completion manifest.
type manifestEntry struct {
	Role      string `json:"role"`
	SHA256    string `json:"sha256"`
	URI       string `json:"uri"`
	MediaType string `json:"media_type"`
	BytesSize int64  `json:"size_bytes"`
}

// manifest enumerates everything linked to the task at completion time.
func (s *Service) manifest(t *models.Task) ([]byte, error) {
	linked, err := s.store.TaskArtifacts(t.HierarchicalID, "")
	if err != nil {
		return nil, fmt.Errorf("hooks: collect artifacts of %s: %w", t.HierarchicalID, err)
	}

	entries := make([]manifestEntry, 0, len(linked))
	for _, info := range linked {
		entries = append(entries, manifestEntry{
			Role:      info.Role,
			SHA256:    info.SHA256,
			URI:       info.URI,
			MediaType: info.MediaType,
			BytesSize: info.BytesSize,
		})
	}

	doc := map[string]interface{}{
		"task_hierarchical_id": t.HierarchicalID,
		"task_title":           t.Title,
		"completion_date":      t.UpdatedAt.UTC().Format(time.RFC3339),
		"artifacts":            entries,
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("hooks: marshal manifest for %s: %w", t.HierarchicalID, err)
	}
	return out, nil
}

// testName turns a hierarchical ID into a Go test identifier.
func testName(hid string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return strings.ToLower(r.Replace(hid))
}

func redTestTemplate(t *models.Task) string {
	return fmt.Sprintf(`package pending

import "testing"

// Failing test for %s: %s
// Implement the feature, then make this pass.
func Test_%s(t *testing.T) {
	t.Fatal("not implemented")
}
`, t.HierarchicalID, t.Title, testName(t.HierarchicalID))
}

func testExecutionLog(t *models.Task) string {
	return fmt.Sprintf(`Test Execution Log for %s
========================================

Task: %s
Status: %s
Generated: %s

Results:
- red suite: PENDING
- green suite: PENDING
- regression suite: PENDING
`, t.HierarchicalID, t.Title, t.Status, t.UpdatedAt.UTC().Format(time.RFC3339))
}

func revisionGuide(t *models.Task, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Revision Guide for %s\n\n", t.HierarchicalID)
	fmt.Fprintf(&b, "Task: %s\n\nCurrent status: %s\n", t.Title, t.Status)
	if reason != "" {
		fmt.Fprintf(&b, "\nReview feedback:\n\n> %s\n", reason)
	}
	b.WriteString(`
Recommended actions:

1. Address each feedback point.
2. Re-run the linked test suite.
3. Move the task back to review_pending when ready.
`)
	return b.String()
}
