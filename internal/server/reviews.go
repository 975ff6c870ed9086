package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nsawada/reqtrack/internal/models"
	"github.com/nsawada/reqtrack/internal/review"
)

// reviewJSON is the wire shape of a review.
type reviewJSON struct {
	ID                  uint       `json:"id"`
	TaskID              uint       `json:"task_id"`
	ReviewType          string     `json:"review_type"`
	Status              string     `json:"status"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	Reviewer            string     `json:"reviewer,omitempty"`
	ReviewNotes         string     `json:"review_notes,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	ReviewStartedAt     *time.Time `json:"review_started_at,omitempty"`
	ReviewCompletedAt   *time.Time `json:"review_completed_at,omitempty"`
	ResponseCompletedAt *time.Time `json:"response_completed_at,omitempty"`
}

func toReviewJSON(rv *models.Review) reviewJSON {
	return reviewJSON{
		ID:                  rv.ID,
		TaskID:              rv.TaskID,
		ReviewType:          rv.ReviewType,
		Status:              rv.Status,
		Title:               rv.Title,
		Description:         rv.Description,
		Reviewer:            rv.Reviewer,
		ReviewNotes:         rv.ReviewNotes,
		CreatedAt:           rv.CreatedAt,
		UpdatedAt:           rv.UpdatedAt,
		ReviewStartedAt:     rv.ReviewStartedAt,
		ReviewCompletedAt:   rv.ReviewCompletedAt,
		ResponseCompletedAt: rv.ResponseCompletedAt,
	}
}

func toReviewCommentJSON(cm *models.ReviewComment) gin.H {
	return gin.H{
		"id":           cm.ID,
		"review_id":    cm.ReviewID,
		"comment_type": cm.CommentType,
		"content":      cm.Content,
		"line_number":  cm.LineNumber,
		"file_path":    cm.FilePath,
		"author":       cm.Author,
		"created_at":   cm.CreatedAt,
	}
}

func toReviewResponseJSON(r *models.ReviewResponse) gin.H {
	return gin.H{
		"id":                    r.ID,
		"review_id":             r.ReviewID,
		"comment_id":            r.CommentID,
		"response_type":         r.ResponseType,
		"content":               r.Content,
		"author":                r.Author,
		"created_at":            r.CreatedAt,
		"response_completed_at": r.ResponseCompletedAt,
	}
}

func handleCreateReview(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			ReviewType  string `json:"review_type" binding:"required"`
			Title       string `json:"title" binding:"required"`
			Description string `json:"description"`
			Reviewer    string `json:"reviewer"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		rv, err := review.Create(db, id, review.CreateOpts{
			ReviewType:  req.ReviewType,
			Title:       req.Title,
			Description: req.Description,
			Reviewer:    req.Reviewer,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toReviewJSON(rv))
	}
}

func handleTaskReviews(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		reviews, err := review.ByTask(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]reviewJSON, 0, len(reviews))
		for i := range reviews {
			out = append(out, toReviewJSON(&reviews[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleGetReview(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		rv, err := review.Get(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toReviewJSON(rv))
	}
}

func handleUpdateReview(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
			Reviewer    *string `json:"reviewer"`
			ReviewNotes *string `json:"review_notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		rv, err := review.Update(db, id, review.UpdateOpts{
			Title:       req.Title,
			Description: req.Description,
			Reviewer:    req.Reviewer,
			ReviewNotes: req.ReviewNotes,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toReviewJSON(rv))
	}
}

func handleReviewDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		rv, err := review.GetDetail(db, id)
		if err != nil {
			writeError(c, err)
			return
		}

		comments := make([]gin.H, 0, len(rv.Comments))
		for i := range rv.Comments {
			comments = append(comments, toReviewCommentJSON(&rv.Comments[i]))
		}
		responses := make([]gin.H, 0, len(rv.Responses))
		for i := range rv.Responses {
			responses = append(responses, toReviewResponseJSON(&rv.Responses[i]))
		}

		detail := gin.H{
			"review":    toReviewJSON(rv),
			"comments":  comments,
			"responses": responses,
		}
		c.JSON(http.StatusOK, detail)
	}
}

func handleReviewTimeline(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		tl, err := review.GetTimeline(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, tl)
	}
}

func handleReviewStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Status      string `json:"status" binding:"required"`
			ReviewNotes string `json:"review_notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		rv, err := review.UpdateStatus(db, id, req.Status, req.ReviewNotes)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toReviewJSON(rv))
	}
}

func handleAddReviewComment(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			CommentType string `json:"comment_type" binding:"required"`
			Content     string `json:"content" binding:"required"`
			LineNumber  *int   `json:"line_number"`
			FilePath    string `json:"file_path"`
			Author      string `json:"author"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		cm, err := review.AddComment(db, id, req.CommentType, req.Content, req.Author, req.FilePath, req.LineNumber)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toReviewCommentJSON(cm))
	}
}

func handleListReviewComments(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		comments, err := review.Comments(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]gin.H, 0, len(comments))
		for i := range comments {
			out = append(out, toReviewCommentJSON(&comments[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleAddReviewResponse(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			ResponseType string `json:"response_type" binding:"required"`
			Content      string `json:"content" binding:"required"`
			CommentID    *uint  `json:"comment_id"`
			Author       string `json:"author"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		resp, err := review.AddResponse(db, id, req.ResponseType, req.Content, req.Author, req.CommentID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toReviewResponseJSON(resp))
	}
}

func handleListReviewResponses(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		responses, err := review.Responses(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]gin.H, 0, len(responses))
		for i := range responses {
			out = append(out, toReviewResponseJSON(&responses[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleCompleteReviewResponse(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		responseID, ok := pathID(c, "response_id")
		if !ok {
			return
		}
		resp, err := review.CompleteResponse(db, id, responseID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toReviewResponseJSON(resp))
	}
}

func handleSearchReviews(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := review.SearchFilters{
			Status:     c.Query("status"),
			ReviewType: c.Query("review_type"),
			Reviewer:   c.Query("reviewer"),
			Sort:       c.Query("sort"),
			Order:      c.Query("order"),
			Offset:     queryInt(c, "offset", 0),
			Limit:      queryInt(c, "limit", 50),
		}
		if v := c.Query("task_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				badRequest(c, err)
				return
			}
			filters.TaskID = uint(id)
		}

		reviews, err := review.Search(db, filters)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]reviewJSON, 0, len(reviews))
		for i := range reviews {
			out = append(out, toReviewJSON(&reviews[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleReviewStatistics(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var taskID uint
		if v := c.Query("task_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				badRequest(c, err)
				return
			}
			taskID = uint(id)
		}

		stats, err := review.GetStatistics(db, taskID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
