// Package hierid generates and validates hierarchical task identifiers.
//
// A hierarchical ID encodes a task's position in the requirement tree:
// REQ-001 for a requirement, REQ-001.TSK-002 for a task under it,
// REQ-001.TSK-002.SUB-001 for a subtask under that task. Each segment's
// ordinal is unique among siblings of the same type, so the full string is
// unique across the whole tree and is enforced as such by the database.
package hierid

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/nsawada/reqtrack/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrInvalidHierarchy reports a parent/child type mismatch or a missing
	// required parent.
	ErrInvalidHierarchy = errors.New("hierid: invalid parent/child hierarchy")

	// ErrAllocationExhausted reports that ID allocation kept colliding with
	// concurrent inserts until the retry budget ran out.
	ErrAllocationExhausted = errors.New("hierid: allocation retries exhausted")
)

const maxAttempts = 5

// baseBackoff is the first retry delay; it doubles on each attempt.
const baseBackoff = 100 * time.Millisecond

// sleep is swapped out in tests.
var sleep = time.Sleep

// Next computes the next hierarchical ID for a node of the given type under
// parent (nil for requirements). The ordinal is one past the highest ordinal
// any sibling of the same type ever took, so deleting a sibling never frees
// its ordinal for reuse. Two concurrent callers can still compute the same
// ID; Create resolves that through the database uniqueness constraint.
func Next(db *gorm.DB, parent *models.Task, typ string) (string, error) {
	switch typ {
	case models.TypeRequirement:
		if parent != nil {
			return "", fmt.Errorf("%w: requirement must not have a parent", ErrInvalidHierarchy)
		}
		var hids []string
		if err := db.Model(&models.Task{}).
			Where("type = ?", models.TypeRequirement).
			Pluck("hierarchical_id", &hids).Error; err != nil {
			return "", fmt.Errorf("hierid: list requirements: %w", err)
		}
		return fmt.Sprintf("REQ-%03d", maxOrdinal(hids)+1), nil

	case models.TypeTask, models.TypeSubtask:
		if parent == nil {
			return "", fmt.Errorf("%w: %s requires a parent", ErrInvalidHierarchy, typ)
		}
		var hids []string
		if err := db.Model(&models.Task{}).
			Where("parent_id = ? AND type = ?", parent.ID, typ).
			Pluck("hierarchical_id", &hids).Error; err != nil {
			return "", fmt.Errorf("hierid: list siblings of %s: %w", parent.HierarchicalID, err)
		}
		prefix := "TSK"
		if typ == models.TypeSubtask {
			prefix = "SUB"
		}
		return fmt.Sprintf("%s.%s-%03d", parent.HierarchicalID, prefix, maxOrdinal(hids)+1), nil

	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidHierarchy, typ)
	}
}

// maxOrdinal returns the largest trailing ordinal among the given
// hierarchical IDs, or 0 when there are none. Unparseable IDs are skipped.
func maxOrdinal(hids []string) int {
	max := 0
	for _, hid := range hids {
		i := strings.LastIndex(hid, "-")
		if i < 0 {
			continue
		}
		n, err := strconv.Atoi(hid[i+1:])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}

// Create assigns a hierarchical ID to task and inserts it. On a uniqueness
// collision (a concurrent insert took the same ordinal) it recomputes the ID
// from scratch and retries with exponential backoff, up to maxAttempts;
// after that it fails with ErrAllocationExhausted.
func Create(db *gorm.DB, task *models.Task, parent *models.Task) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		hid, err := Next(db, parent, task.Type)
		if err != nil {
			return err
		}
		task.HierarchicalID = hid

		err = db.Create(task).Error
		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			return fmt.Errorf("hierid: create %s: %w", hid, err)
		}

		log.Printf("hierid: ID conflict on attempt %d for %s", attempt+1, hid)
		// A failed insert can leave a stale primary key on the struct.
		task.ID = 0
		if attempt < maxAttempts-1 {
			sleep(baseBackoff << attempt)
		}
	}
	return fmt.Errorf("%w: %d attempts for type %s", ErrAllocationExhausted, maxAttempts, task.Type)
}

// ValidParentChild reports whether a child of childType may sit under a
// parent of parentType. Requirements never validate as children.
func ValidParentChild(parentType, childType string) bool {
	switch childType {
	case models.TypeTask:
		return parentType == models.TypeRequirement
	case models.TypeSubtask:
		return parentType == models.TypeTask
	}
	return false
}

// HasCycle reports whether re-parenting taskID under newParentID would make
// the task its own descendant. It walks the ancestor chain from newParentID
// with a visited set, so it also terminates (and reports true) on parent
// pointers that already form a loop in the stored data.
func HasCycle(db *gorm.DB, taskID, newParentID uint) (bool, error) {
	if taskID == newParentID {
		return true, nil
	}

	visited := make(map[uint]bool)
	current := &newParentID

	for current != nil {
		id := *current
		if visited[id] {
			return true, nil
		}
		if id == taskID {
			return true, nil
		}
		visited[id] = true

		var parent models.Task
		err := db.Select("id", "parent_id").Where("id = ?", id).First(&parent).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("hierid: walk ancestors at %d: %w", id, err)
		}
		current = parent.ParentID
	}
	return false, nil
}

// IsUniqueViolation reports whether err is a uniqueness-constraint failure
// from any of the supported drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") // mysql
}
