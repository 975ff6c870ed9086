package task

import (
	"fmt"
	"log"
	"time"

	"github.com/nsawada/reqtrack/internal/models"
	"gorm.io/gorm"
)

// Hook receives committed status transitions. Implementations produce
// auxiliary artifacts; their errors never affect the transition itself.
type Hook interface {
	HandleTransition(t *models.Task, fromStatus, toStatus, reason string) error
}

// Transition moves a task to toStatus if the state machine allows it,
// appending a status_change history record and bumping updated_at. After the
// change is committed the hook runs; a hook failure is logged and swallowed,
// never rolled back into the transition result.
func Transition(db *gorm.DB, hook Hook, taskID uint, toStatus, reason string) (*models.Task, error) {
	t, err := Get(db, taskID)
	if err != nil {
		return nil, err
	}

	if !isValidTransition(t.Status, toStatus) {
		return nil, fmt.Errorf("%w: %s → %s (valid: %v)", ErrInvalidTransition, t.Status, toStatus, ValidTransitions[t.Status])
	}

	fromStatus := t.Status
	err = db.Transaction(func(tx *gorm.DB) error {
		history := models.TaskHistory{
			TaskID:     taskID,
			EventType:  "status_change",
			FromStatus: fromStatus,
			ToStatus:   toStatus,
			Note:       reason,
			ChangedBy:  "system",
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("task: record transition of %d: %w", taskID, err)
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", taskID).Updates(map[string]interface{}{
			"status":     toStatus,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("task: transition %d: %w", taskID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t, err = Get(db, taskID)
	if err != nil {
		return nil, err
	}

	if hook != nil {
		if hookErr := hook.HandleTransition(t, fromStatus, toStatus, reason); hookErr != nil {
			log.Printf("task: transition hook for %s (%s → %s): %v", t.HierarchicalID, fromStatus, toStatus, hookErr)
		}
	}
	return t, nil
}

// isValidTransition checks whether a status transition is allowed.
func isValidTransition(from, to string) bool {
	valid, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, v := range valid {
		if v == to {
			return true
		}
	}
	return false
}
