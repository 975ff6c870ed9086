package task

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nsawada/reqtrack/internal/models"
)

// recordingHook captures transitions and optionally fails.
type recordingHook struct {
	calls []string
	err   error
}

func (h *recordingHook) HandleTransition(t *models.Task, from, to, reason string) error {
	h.calls = append(h.calls, fmt.Sprintf("%s:%s→%s", t.HierarchicalID, from, to))
	return h.err
}

func TestIsValidTransition_Table(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.StatusNotStarted, models.StatusInProgress, true},
		{models.StatusNotStarted, models.StatusBlocked, true},
		{models.StatusNotStarted, models.StatusCompleted, false},
		{models.StatusInProgress, models.StatusReviewPending, true},
		{models.StatusInProgress, models.StatusBlocked, true},
		{models.StatusInProgress, models.StatusCompleted, true},
		{models.StatusInProgress, models.StatusNotStarted, false},
		{models.StatusReviewPending, models.StatusRevising, true},
		{models.StatusReviewPending, models.StatusCompleted, true},
		{models.StatusReviewPending, models.StatusInProgress, false},
		{models.StatusRevising, models.StatusReviewPending, true},
		{models.StatusRevising, models.StatusInProgress, true},
		{models.StatusRevising, models.StatusCompleted, false},
		{models.StatusBlocked, models.StatusNotStarted, true},
		{models.StatusBlocked, models.StatusInProgress, true},
		{models.StatusBlocked, models.StatusCompleted, false},
		{models.StatusCompleted, models.StatusInProgress, false},
		{models.StatusCompleted, models.StatusNotStarted, false},
		{models.StatusCompleted, models.StatusCompleted, false},
		{"bogus", models.StatusInProgress, false},
	}

	for _, tt := range tests {
		if got := isValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("isValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransition_Success(t *testing.T) {
	db := testDB(t)
	req := createRequirement(t, db, "r")

	updated, err := Transition(db, nil, req.ID, models.StatusInProgress, "kicking off")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != models.StatusInProgress {
		t.Errorf("Status = %q, want in_progress", updated.Status)
	}
	if !updated.UpdatedAt.After(req.UpdatedAt) && !updated.UpdatedAt.Equal(req.UpdatedAt) {
		t.Error("UpdatedAt not bumped")
	}

	records, err := History(db, req.ID, 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("history records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.EventType != "status_change" {
		t.Errorf("EventType = %q, want status_change", rec.EventType)
	}
	if rec.FromStatus != models.StatusNotStarted || rec.ToStatus != models.StatusInProgress {
		t.Errorf("history %s → %s, want not_started → in_progress", rec.FromStatus, rec.ToStatus)
	}
	if rec.Note != "kicking off" {
		t.Errorf("Note = %q, want %q", rec.Note, "kicking off")
	}
}

func TestTransition_Invalid(t *testing.T) {
	db := testDB(t)
	req := createRequirement(t, db, "r")

	_, err := Transition(db, nil, req.ID, models.StatusCompleted, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}

	// No history record for a rejected transition.
	records, err := History(db, req.ID, 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("history records = %d after rejected transition, want 0", len(records))
	}
}

func TestTransition_CompletedIsTerminal(t *testing.T) {
	db := testDB(t)
	req := createRequirement(t, db, "r")

	for _, to := range []string{models.StatusInProgress, models.StatusCompleted} {
		if _, err := Transition(db, nil, req.ID, to, ""); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}

	for _, to := range []string{
		models.StatusNotStarted, models.StatusInProgress, models.StatusBlocked,
		models.StatusReviewPending, models.StatusRevising, models.StatusCompleted,
	} {
		if _, err := Transition(db, nil, req.ID, to, ""); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("completed → %s error = %v, want ErrInvalidTransition", to, err)
		}
	}
}

func TestTransition_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := Transition(db, nil, 77, models.StatusInProgress, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestTransition_HookInvoked(t *testing.T) {
	db := testDB(t)
	req := createRequirement(t, db, "r")
	hook := &recordingHook{}

	if _, err := Transition(db, hook, req.ID, models.StatusInProgress, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	want := "REQ-001:not_started→in_progress"
	if len(hook.calls) != 1 || hook.calls[0] != want {
		t.Errorf("hook calls = %v, want [%s]", hook.calls, want)
	}
}

func TestTransition_HookFailureSwallowed(t *testing.T) {
	db := testDB(t)
	req := createRequirement(t, db, "r")
	hook := &recordingHook{err: errors.New("artifact store down")}

	updated, err := Transition(db, hook, req.ID, models.StatusInProgress, "go")
	if err != nil {
		t.Fatalf("Transition failed despite hook isolation: %v", err)
	}
	if updated.Status != models.StatusInProgress {
		t.Errorf("Status = %q, want in_progress", updated.Status)
	}

	// The transition committed: exactly one history record exists.
	records, err := History(db, req.ID, 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("history records = %d, want 1", len(records))
	}
}

func TestTransition_HookNotInvokedOnRejection(t *testing.T) {
	db := testDB(t)
	req := createRequirement(t, db, "r")
	hook := &recordingHook{}

	if _, err := Transition(db, hook, req.ID, models.StatusRevising, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
	if len(hook.calls) != 0 {
		t.Errorf("hook called %d times on rejected transition, want 0", len(hook.calls))
	}
}

func TestTransition_FullLifecycle(t *testing.T) {
	db := testDB(t)
	req := createRequirement(t, db, "r")

	path := []string{
		models.StatusInProgress,
		models.StatusReviewPending,
		models.StatusRevising,
		models.StatusReviewPending,
		models.StatusCompleted,
	}
	for _, to := range path {
		if _, err := Transition(db, nil, req.ID, to, ""); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}

	records, err := History(db, req.ID, 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != len(path) {
		t.Errorf("history records = %d, want %d", len(records), len(path))
	}
	// Newest first.
	if records[0].ToStatus != models.StatusCompleted {
		t.Errorf("newest record ToStatus = %q, want completed", records[0].ToStatus)
	}
}
