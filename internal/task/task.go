// Package task provides task lifecycle operations: creation with
// hierarchical ID allocation, search, re-parenting, status transitions with
// history, comments, and retention cleanup.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/nsawada/reqtrack/internal/hierid"
	"github.com/nsawada/reqtrack/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound reports a lookup that matched no task.
	ErrNotFound = errors.New("task: not found")

	// ErrInvalidTransition reports a status change not permitted from the
	// task's current status.
	ErrInvalidTransition = errors.New("task: invalid status transition")
)

// CreateOpts holds parameters for creating a new task.
type CreateOpts struct {
	Title       string
	Description string
	Type        string // requirement, task, subtask
	ParentID    *uint
}

// SearchFilters holds optional filters for searching tasks.
type SearchFilters struct {
	Type     string
	Status   string
	ParentID *uint
	Query    string // substring match on title or description
	Sort     string // created_at, updated_at, title
	Order    string // asc, desc
	Offset   int
	Limit    int
}

// ValidTransitions maps each status to its valid next statuses.
// completed is terminal and has no entry on purpose.
var ValidTransitions = map[string][]string{
	models.StatusNotStarted:    {models.StatusInProgress, models.StatusBlocked},
	models.StatusInProgress:    {models.StatusReviewPending, models.StatusBlocked, models.StatusCompleted},
	models.StatusReviewPending: {models.StatusRevising, models.StatusCompleted},
	models.StatusRevising:      {models.StatusReviewPending, models.StatusInProgress},
	models.StatusBlocked:       {models.StatusNotStarted, models.StatusInProgress},
	models.StatusCompleted:     {},
}

// Create creates a task with an allocated hierarchical ID. The parent/child
// type pairing is validated before allocation; the allocator itself retries
// on concurrent ordinal collisions.
func Create(db *gorm.DB, opts CreateOpts) (*models.Task, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("task: title is required")
	}

	var parent *models.Task
	if opts.ParentID != nil {
		var p models.Task
		if err := db.Where("id = ?", *opts.ParentID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: parent %d", ErrNotFound, *opts.ParentID)
			}
			return nil, fmt.Errorf("task: check parent %d: %w", *opts.ParentID, err)
		}
		if !hierid.ValidParentChild(p.Type, opts.Type) {
			return nil, fmt.Errorf("%w: %s cannot be a child of %s", hierid.ErrInvalidHierarchy, opts.Type, p.Type)
		}
		parent = &p
	} else if opts.Type != models.TypeRequirement {
		return nil, fmt.Errorf("%w: %s requires a parent", hierid.ErrInvalidHierarchy, opts.Type)
	}

	t := &models.Task{
		Title:       opts.Title,
		Description: opts.Description,
		Type:        opts.Type,
		Status:      models.StatusNotStarted,
		ParentID:    opts.ParentID,
	}
	if err := hierid.Create(db, t, parent); err != nil {
		return nil, err
	}
	return t, nil
}

// Get retrieves a task by surrogate key.
func Get(db *gorm.DB, id uint) (*models.Task, error) {
	var t models.Task
	if err := db.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("task: get %d: %w", id, err)
	}
	return &t, nil
}

// GetByHierarchicalID retrieves a task by its hierarchical ID.
func GetByHierarchicalID(db *gorm.DB, hid string) (*models.Task, error) {
	var t models.Task
	if err := db.Where("hierarchical_id = ?", hid).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hid)
		}
		return nil, fmt.Errorf("task: get %s: %w", hid, err)
	}
	return &t, nil
}

// Search returns tasks matching the given filters.
func Search(db *gorm.DB, filters SearchFilters) ([]models.Task, error) {
	q := db.Model(&models.Task{})

	if filters.Type != "" {
		q = q.Where("type = ?", filters.Type)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.ParentID != nil {
		q = q.Where("parent_id = ?", *filters.ParentID)
	}
	if filters.Query != "" {
		like := "%" + filters.Query + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", like, like)
	}

	sort := filters.Sort
	switch sort {
	case "created_at", "updated_at", "title":
	default:
		sort = "created_at"
	}
	order := "ASC"
	if filters.Order == "desc" {
		order = "DESC"
	}
	q = q.Order(sort + " " + order)

	if filters.Offset > 0 {
		q = q.Offset(filters.Offset)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}

	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: search: %w", err)
	}
	return tasks, nil
}

// Requirements returns requirement-type tasks, optionally filtered by a
// title substring and status, paginated.
func Requirements(db *gorm.DB, offset, limit int, query, status string) ([]models.Task, error) {
	q := db.Model(&models.Task{}).Where("type = ?", models.TypeRequirement)
	if query != "" {
		q = q.Where("title LIKE ?", "%"+query+"%")
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var tasks []models.Task
	if err := q.Order("hierarchical_id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list requirements: %w", err)
	}
	return tasks, nil
}

// Children returns the children of a parent task with the given type,
// ordered by hierarchical ID.
func Children(db *gorm.DB, parentID uint, typ string) ([]models.Task, error) {
	var children []models.Task
	if err := db.Where("parent_id = ? AND type = ?", parentID, typ).
		Order("hierarchical_id ASC").Find(&children).Error; err != nil {
		return nil, fmt.Errorf("task: children of %d: %w", parentID, err)
	}
	return children, nil
}

// UpdateOpts holds mutable task fields. Status is not here: status changes
// go through Transition so the state machine and history stay authoritative.
type UpdateOpts struct {
	Title       *string
	Description *string
}

// Update modifies a task's title and/or description.
func Update(db *gorm.DB, id uint, opts UpdateOpts) (*models.Task, error) {
	t, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if opts.Title != nil {
		if *opts.Title == "" {
			return nil, fmt.Errorf("task: title is required")
		}
		updates["title"] = *opts.Title
	}
	if opts.Description != nil {
		updates["description"] = *opts.Description
	}
	if len(updates) == 0 {
		return t, nil
	}
	updates["updated_at"] = time.Now().UTC()

	if err := db.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("task: update %d: %w", id, err)
	}
	return Get(db, id)
}

// Delete removes a task together with its history, comments, reviews, and
// artifact links, in one transaction.
func Delete(db *gorm.DB, id uint) error {
	t, err := Get(db, id)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var reviewIDs []uint
		if err := tx.Model(&models.Review{}).Where("task_id = ?", id).Pluck("id", &reviewIDs).Error; err != nil {
			return fmt.Errorf("task: collect reviews of %d: %w", id, err)
		}
		if len(reviewIDs) > 0 {
			if err := tx.Where("review_id IN ?", reviewIDs).Delete(&models.ReviewResponse{}).Error; err != nil {
				return fmt.Errorf("task: delete review responses: %w", err)
			}
			if err := tx.Where("review_id IN ?", reviewIDs).Delete(&models.ReviewComment{}).Error; err != nil {
				return fmt.Errorf("task: delete review comments: %w", err)
			}
			if err := tx.Where("task_id = ?", id).Delete(&models.Review{}).Error; err != nil {
				return fmt.Errorf("task: delete reviews: %w", err)
			}
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskHistory{}).Error; err != nil {
			return fmt.Errorf("task: delete history: %w", err)
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("task: delete comments: %w", err)
		}
		if err := tx.Where("task_hid = ?", t.HierarchicalID).Delete(&models.TaskArtifactLink{}).Error; err != nil {
			return fmt.Errorf("task: delete artifact links: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("task: delete %d: %w", id, err)
		}
		return nil
	})
}

// Move re-parents a task. The new parent's type must be the valid immediate
// predecessor of the task's type, and the move must not create a cycle. The
// hierarchical ID is immutable and keeps its original ancestry encoding; a
// parent_change history event records the move.
func Move(db *gorm.DB, id, newParentID uint) (*models.Task, error) {
	t, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	parent, err := Get(db, newParentID)
	if err != nil {
		return nil, err
	}
	if !hierid.ValidParentChild(parent.Type, t.Type) {
		return nil, fmt.Errorf("%w: %s cannot be a child of %s", hierid.ErrInvalidHierarchy, t.Type, parent.Type)
	}

	cyclic, err := hierid.HasCycle(db, id, newParentID)
	if err != nil {
		return nil, err
	}
	if cyclic {
		return nil, fmt.Errorf("%w: moving %s under %s would create a cycle", hierid.ErrInvalidHierarchy, t.HierarchicalID, parent.HierarchicalID)
	}

	oldParent := ""
	if t.ParentID != nil {
		if p, err := Get(db, *t.ParentID); err == nil {
			oldParent = p.HierarchicalID
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(map[string]interface{}{
			"parent_id":  newParentID,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("task: move %d: %w", id, err)
		}
		history := models.TaskHistory{
			TaskID:    id,
			EventType: "parent_change",
			Note:      fmt.Sprintf("moved from %s to %s", oldParent, parent.HierarchicalID),
			ChangedBy: "system",
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("task: record move of %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Get(db, id)
}

// AddComment attaches a comment to a task. Type is "review" or "note".
func AddComment(db *gorm.DB, taskID uint, commentType, body string) (*models.Comment, error) {
	if _, err := Get(db, taskID); err != nil {
		return nil, err
	}

	c := models.Comment{
		TaskID:    taskID,
		Type:      commentType,
		Body:      body,
		CreatedBy: "system",
	}
	if err := db.Create(&c).Error; err != nil {
		return nil, fmt.Errorf("task: add comment to %d: %w", taskID, err)
	}
	return &c, nil
}

// Comments returns a task's comments, oldest first, paginated.
func Comments(db *gorm.DB, taskID uint, offset, limit int) ([]models.Comment, error) {
	q := db.Where("task_id = ?", taskID).Order("created_at ASC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var comments []models.Comment
	if err := q.Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("task: comments of %d: %w", taskID, err)
	}
	return comments, nil
}

// History returns a task's history records, newest first, paginated.
func History(db *gorm.DB, taskID uint, offset, limit int) ([]models.TaskHistory, error) {
	q := db.Where("task_id = ?", taskID).Order("created_at DESC, id DESC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []models.TaskHistory
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("task: history of %d: %w", taskID, err)
	}
	return records, nil
}

// CleanupHistory deletes history records created before cutoff and returns
// the number removed. This is the only path that deletes history.
func CleanupHistory(db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.Where("created_at < ?", cutoff).Delete(&models.TaskHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("task: cleanup history: %w", res.Error)
	}
	return res.RowsAffected, nil
}
