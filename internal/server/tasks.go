package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nsawada/reqtrack/internal/models"
	"github.com/nsawada/reqtrack/internal/task"
	"github.com/nsawada/reqtrack/internal/tree"
)

// taskJSON is the wire shape of a task.
type taskJSON struct {
	ID             uint      `json:"id"`
	HierarchicalID string    `json:"hierarchical_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	ParentID       *uint     `json:"parent_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toTaskJSON(t *models.Task) taskJSON {
	return taskJSON{
		ID:             t.ID,
		HierarchicalID: t.HierarchicalID,
		Title:          t.Title,
		Description:    t.Description,
		Type:           t.Type,
		Status:         t.Status,
		ParentID:       t.ParentID,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func toTaskListJSON(tasks []models.Task) []taskJSON {
	out := make([]taskJSON, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskJSON(&tasks[i]))
	}
	return out
}

// pathID parses the numeric :id path parameter.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid %s %q", name, c.Param(name)))
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func handleCreateTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Title       string `json:"title" binding:"required"`
			Description string `json:"description"`
			Type        string `json:"type" binding:"required"`
			ParentID    *uint  `json:"parent_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		t, err := task.Create(db, task.CreateOpts{
			Title:       req.Title,
			Description: req.Description,
			Type:        req.Type,
			ParentID:    req.ParentID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toTaskJSON(t))
	}
}

func handleCreateRequirement(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Title       string `json:"title" binding:"required"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		t, err := task.Create(db, task.CreateOpts{
			Title:       req.Title,
			Description: req.Description,
			Type:        models.TypeRequirement,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toTaskJSON(t))
	}
}

func handleSearchTasks(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := task.SearchFilters{
			Type:   c.Query("type"),
			Status: c.Query("status"),
			Query:  c.Query("q"),
			Sort:   c.Query("sort"),
			Order:  c.Query("order"),
			Offset: queryInt(c, "offset", 0),
			Limit:  queryInt(c, "limit", 50),
		}
		if v := c.Query("parent_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				badRequest(c, fmt.Errorf("invalid parent_id %q", v))
				return
			}
			pid := uint(id)
			filters.ParentID = &pid
		}

		tasks, err := task.Search(db, filters)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTaskListJSON(tasks))
	}
}

func handleGetTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		t, err := task.Get(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTaskJSON(t))
	}
}

func handleUpdateTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		t, err := task.Update(db, id, task.UpdateOpts{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTaskJSON(t))
	}
}

func handleDeleteTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := task.Delete(db, id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleMoveTask(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			ParentID uint `json:"parent_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		t, err := task.Move(db, id, req.ParentID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTaskJSON(t))
	}
}

func handleTransition(db *gorm.DB, hook task.Hook) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			NewStatus string `json:"new_status" binding:"required"`
			Reason    string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		t, err := task.Transition(db, hook, id, req.NewStatus, req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTaskJSON(t))
	}
}

func handleAddComment(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Type string `json:"type" binding:"required"`
			Body string `json:"body" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		comment, err := task.AddComment(db, id, req.Type, req.Body)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"id":         comment.ID,
			"task_id":    comment.TaskID,
			"type":       comment.Type,
			"body":       comment.Body,
			"created_at": comment.CreatedAt,
		})
	}
}

func handleListComments(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		comments, err := task.Comments(db, id, queryInt(c, "offset", 0), queryInt(c, "limit", 50))
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]gin.H, 0, len(comments))
		for _, cm := range comments {
			out = append(out, gin.H{
				"id":         cm.ID,
				"task_id":    cm.TaskID,
				"type":       cm.Type,
				"body":       cm.Body,
				"created_at": cm.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleListHistory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		history, err := task.History(db, id, queryInt(c, "offset", 0), queryInt(c, "limit", 50))
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]gin.H, 0, len(history))
		for _, h := range history {
			out = append(out, gin.H{
				"id":          h.ID,
				"task_id":     h.TaskID,
				"event_type":  h.EventType,
				"from_status": h.FromStatus,
				"to_status":   h.ToStatus,
				"note":        h.Note,
				"changed_by":  h.ChangedBy,
				"created_at":  h.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleListSubtasks(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if _, err := task.Get(db, id); err != nil {
			writeError(c, err)
			return
		}
		subtasks, err := task.Children(db, id, models.TypeSubtask)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTaskListJSON(subtasks))
	}
}

func handleListRequirements(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqs, err := task.Requirements(db,
			queryInt(c, "offset", 0), queryInt(c, "limit", 50),
			c.Query("q"), c.Query("status"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTaskListJSON(reqs))
	}
}

func handleGetRequirement(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		t, err := task.Get(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		if t.Type != models.TypeRequirement {
			writeError(c, fmt.Errorf("%w: requirement %d", task.ErrNotFound, id))
			return
		}
		c.JSON(http.StatusOK, toTaskJSON(t))
	}
}

func handleRequirementTasks(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if _, err := task.Get(db, id); err != nil {
			writeError(c, err)
			return
		}
		children, err := task.Children(db, id, models.TypeTask)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTaskListJSON(children))
	}
}

// Tree depth is clamped to keep responses bounded.
const (
	defaultTreeDepth = 3
	maxTreeDepth     = 5
)

func handleTree(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		depth := queryInt(c, "depth", defaultTreeDepth)
		if depth < 1 {
			depth = 1
		}
		if depth > maxTreeDepth {
			depth = maxTreeDepth
		}

		node, err := tree.Subtree(db, c.Param("hid"), depth)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, node)
	}
}

func handleTreeSearch(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := task.Search(db, task.SearchFilters{
			Query:  c.Query("q"),
			Type:   c.Query("type"),
			Status: c.Query("status"),
			Limit:  queryInt(c, "limit", 50),
		})
		if err != nil {
			writeError(c, err)
			return
		}

		out := make([]gin.H, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, gin.H{
				"hierarchical_id": t.HierarchicalID,
				"title":           t.Title,
				"type":            t.Type,
				"status":          t.Status,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}
