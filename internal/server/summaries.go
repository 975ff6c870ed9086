package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nsawada/reqtrack/internal/cas"
	"github.com/nsawada/reqtrack/internal/summary"
	"github.com/nsawada/reqtrack/internal/task"
)

func handleUpsertSummary(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		TaskHID    string   `json:"task_hid" binding:"required"`
		Summary140 string   `json:"summary_140" binding:"required"`
		Acceptance []string `json:"acceptance"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if _, err := task.GetByHierarchicalID(db, req.TaskHID); err != nil {
			writeError(c, err)
			return
		}
		s, err := summary.Upsert(db, req.TaskHID, req.Summary140, req.Acceptance)
		if err != nil {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"task_hid":    s.TaskHID,
			"summary_140": s.Summary140,
			"acceptance":  summary.Acceptance(s),
			"updated_at":  s.UpdatedAt,
		})
	}
}

func handleGetSummary(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := summary.Get(db, c.Param("hid"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"task_hid":    s.TaskHID,
			"summary_140": s.Summary140,
			"acceptance":  summary.Acceptance(s),
			"updated_at":  s.UpdatedAt,
		})
	}
}

func handleOutlineCard(db *gorm.DB, store *cas.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		card, err := summary.Outline(db, store, c.Param("hid"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, card)
	}
}
