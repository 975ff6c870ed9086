// Package review manages review cycles attached to tasks: creation,
// status progression with phase timestamps, reviewer comments, author
// responses, and aggregate reporting.
package review

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nsawada/reqtrack/internal/models"
)

// ErrNotFound is returned when a review, comment, or response does not exist.
var ErrNotFound = errors.New("review: not found")

// CreateOpts carries the fields accepted when opening a review.
type CreateOpts struct {
	ReviewType  string
	Title       string
	Description string
	Reviewer    string
}

// UpdateOpts carries optional field updates; nil means leave unchanged.
type UpdateOpts struct {
	Title       *string
	Description *string
	Reviewer    *string
	ReviewNotes *string
}

// SearchFilters narrows and orders a review search.
type SearchFilters struct {
	Status     string
	ReviewType string
	Reviewer   string
	TaskID     uint
	Sort       string
	Order      string
	Offset     int
	Limit      int
}

var validTypes = map[string]bool{
	models.ReviewTypeCode:        true,
	models.ReviewTypeDesign:      true,
	models.ReviewTypeRequirement: true,
	models.ReviewTypeTest:        true,
	models.ReviewTypeDocument:    true,
}

var validStatuses = map[string]bool{
	models.ReviewPending:    true,
	models.ReviewInProgress: true,
	models.ReviewCompleted:  true,
	models.ReviewRejected:   true,
	models.ReviewCancelled:  true,
}

// Create opens a review against an existing task.
func Create(db *gorm.DB, taskID uint, opts CreateOpts) (*models.Review, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("review: title is required")
	}
	if !validTypes[opts.ReviewType] {
		return nil, fmt.Errorf("review: unknown review type %q", opts.ReviewType)
	}

	var task models.Task
	if err := db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("review: task %d: %w", taskID, ErrNotFound)
		}
		return nil, fmt.Errorf("review: load task %d: %w", taskID, err)
	}

	rv := models.Review{
		TaskID:      taskID,
		ReviewType:  opts.ReviewType,
		Status:      models.ReviewPending,
		Title:       opts.Title,
		Description: opts.Description,
		Reviewer:    opts.Reviewer,
	}
	if err := db.Create(&rv).Error; err != nil {
		return nil, fmt.Errorf("review: create: %w", err)
	}
	return &rv, nil
}

// Get loads a review by ID.
func Get(db *gorm.DB, id uint) (*models.Review, error) {
	var rv models.Review
	if err := db.First(&rv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("review: %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("review: load %d: %w", id, err)
	}
	return &rv, nil
}

// GetDetail loads a review with its comments and responses preloaded.
func GetDetail(db *gorm.DB, id uint) (*models.Review, error) {
	var rv models.Review
	err := db.Preload("Comments").Preload("Responses").First(&rv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("review: %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("review: load %d: %w", id, err)
	}
	return &rv, nil
}

// ByTask lists all reviews attached to a task.
func ByTask(db *gorm.DB, taskID uint) ([]models.Review, error) {
	var reviews []models.Review
	if err := db.Where("task_id = ?", taskID).Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("review: list for task %d: %w", taskID, err)
	}
	return reviews, nil
}

// Update applies partial field changes to a review.
func Update(db *gorm.DB, id uint, opts UpdateOpts) (*models.Review, error) {
	rv, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if opts.Title != nil {
		updates["title"] = *opts.Title
	}
	if opts.Description != nil {
		updates["description"] = *opts.Description
	}
	if opts.Reviewer != nil {
		updates["reviewer"] = *opts.Reviewer
	}
	if opts.ReviewNotes != nil {
		updates["review_notes"] = *opts.ReviewNotes
	}
	if len(updates) == 0 {
		return rv, nil
	}
	updates["updated_at"] = time.Now().UTC()

	if err := db.Model(rv).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("review: update %d: %w", id, err)
	}
	return Get(db, id)
}

// UpdateStatus moves a review to a new status and stamps the phase
// timestamps: pending→in_progress records the review start,
// in_progress→completed the review end, and pending→completed both at once.
func UpdateStatus(db *gorm.DB, id uint, status, notes string) (*models.Review, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("review: unknown status %q", status)
	}
	rv, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	switch {
	case status == models.ReviewInProgress && rv.Status == models.ReviewPending:
		updates["review_started_at"] = now
	case status == models.ReviewCompleted && rv.Status == models.ReviewInProgress:
		updates["review_completed_at"] = now
	case status == models.ReviewCompleted && rv.Status == models.ReviewPending:
		updates["review_started_at"] = now
		updates["review_completed_at"] = now
	}
	if notes != "" {
		updates["review_notes"] = notes
	}

	if err := db.Model(rv).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("review: update status of %d: %w", id, err)
	}
	return Get(db, id)
}

// AddComment attaches reviewer feedback to a review.
func AddComment(db *gorm.DB, reviewID uint, commentType, content, author, filePath string, lineNumber *int) (*models.ReviewComment, error) {
	if content == "" {
		return nil, fmt.Errorf("review: comment content is required")
	}
	if _, err := Get(db, reviewID); err != nil {
		return nil, err
	}

	c := models.ReviewComment{
		ReviewID:    reviewID,
		CommentType: commentType,
		Content:     content,
		Author:      author,
		FilePath:    filePath,
		LineNumber:  lineNumber,
	}
	if err := db.Create(&c).Error; err != nil {
		return nil, fmt.Errorf("review: add comment to %d: %w", reviewID, err)
	}
	return &c, nil
}

// Comments lists reviewer feedback on a review.
func Comments(db *gorm.DB, reviewID uint) ([]models.ReviewComment, error) {
	var comments []models.ReviewComment
	if err := db.Where("review_id = ?", reviewID).Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("review: comments of %d: %w", reviewID, err)
	}
	return comments, nil
}

// AddResponse records the author's reply, optionally bound to one comment.
func AddResponse(db *gorm.DB, reviewID uint, responseType, content, author string, commentID *uint) (*models.ReviewResponse, error) {
	if content == "" {
		return nil, fmt.Errorf("review: response content is required")
	}
	if _, err := Get(db, reviewID); err != nil {
		return nil, err
	}

	r := models.ReviewResponse{
		ReviewID:     reviewID,
		CommentID:    commentID,
		ResponseType: responseType,
		Content:      content,
		Author:       author,
	}
	if err := db.Create(&r).Error; err != nil {
		return nil, fmt.Errorf("review: add response to %d: %w", reviewID, err)
	}
	return &r, nil
}

// Responses lists author replies on a review.
func Responses(db *gorm.DB, reviewID uint) ([]models.ReviewResponse, error) {
	var responses []models.ReviewResponse
	if err := db.Where("review_id = ?", reviewID).Find(&responses).Error; err != nil {
		return nil, fmt.Errorf("review: responses of %d: %w", reviewID, err)
	}
	return responses, nil
}

// CompleteResponse stamps a response as done and mirrors the completion
// time onto the parent review.
func CompleteResponse(db *gorm.DB, reviewID, responseID uint) (*models.ReviewResponse, error) {
	var resp models.ReviewResponse
	err := db.Where("id = ? AND review_id = ?", responseID, reviewID).First(&resp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("review: response %d of %d: %w", responseID, reviewID, ErrNotFound)
		}
		return nil, fmt.Errorf("review: load response %d: %w", responseID, err)
	}

	now := time.Now().UTC()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&resp).Update("response_completed_at", now).Error; err != nil {
			return err
		}
		return tx.Model(&models.Review{}).Where("id = ?", reviewID).Updates(map[string]interface{}{
			"response_completed_at": now,
			"updated_at":            now,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("review: complete response %d: %w", responseID, err)
	}
	resp.ResponseCompletedAt = &now
	return &resp, nil
}

// Timeline reports the phase timestamps of a review plus derived durations
// in whole seconds.
type Timeline struct {
	ReviewID            uint       `json:"review_id"`
	TaskID              uint       `json:"task_id"`
	ReviewType          string     `json:"review_type"`
	Status              string     `json:"status"`
	Title               string     `json:"title"`
	Reviewer            string     `json:"reviewer,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	ReviewStartedAt     *time.Time `json:"review_started_at,omitempty"`
	ReviewCompletedAt   *time.Time `json:"review_completed_at,omitempty"`
	ResponseCompletedAt *time.Time `json:"response_completed_at,omitempty"`
	ReviewDuration      *int64     `json:"review_duration,omitempty"`
	ResponseDuration    *int64     `json:"response_duration,omitempty"`
	TotalDuration       *int64     `json:"total_duration,omitempty"`
}

// GetTimeline computes the timeline for one review. Durations are only set
// where both bounding timestamps exist.
func GetTimeline(db *gorm.DB, id uint) (*Timeline, error) {
	rv, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	tl := &Timeline{
		ReviewID:            rv.ID,
		TaskID:              rv.TaskID,
		ReviewType:          rv.ReviewType,
		Status:              rv.Status,
		Title:               rv.Title,
		Reviewer:            rv.Reviewer,
		CreatedAt:           rv.CreatedAt,
		ReviewStartedAt:     rv.ReviewStartedAt,
		ReviewCompletedAt:   rv.ReviewCompletedAt,
		ResponseCompletedAt: rv.ResponseCompletedAt,
	}
	tl.ReviewDuration = secondsBetween(rv.ReviewStartedAt, rv.ReviewCompletedAt)
	tl.ResponseDuration = secondsBetween(rv.ReviewCompletedAt, rv.ResponseCompletedAt)
	if rv.ResponseCompletedAt != nil {
		tl.TotalDuration = secondsBetween(&rv.CreatedAt, rv.ResponseCompletedAt)
	} else if rv.ReviewCompletedAt != nil {
		tl.TotalDuration = secondsBetween(&rv.CreatedAt, rv.ReviewCompletedAt)
	}
	return tl, nil
}

func secondsBetween(from, to *time.Time) *int64 {
	if from == nil || to == nil {
		return nil
	}
	s := int64(to.Sub(*from).Seconds())
	return &s
}

// TypeCounts breaks review counts down by status within one review type.
type TypeCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Rejected   int `json:"rejected"`
	Cancelled  int `json:"cancelled"`
}

// Statistics aggregates review counts and average phase durations.
type Statistics struct {
	TotalReviews      int                   `json:"total_reviews"`
	PendingReviews    int                   `json:"pending_reviews"`
	InProgressReviews int                   `json:"in_progress_reviews"`
	CompletedReviews  int                   `json:"completed_reviews"`
	RejectedReviews   int                   `json:"rejected_reviews"`
	CancelledReviews  int                   `json:"cancelled_reviews"`
	AvgReviewSeconds  *float64              `json:"avg_review_duration,omitempty"`
	AvgResponseSecs   *float64              `json:"avg_response_duration,omitempty"`
	AvgTotalSeconds   *float64              `json:"avg_total_duration,omitempty"`
	ByType            map[string]TypeCounts `json:"review_type_stats"`
}

// GetStatistics aggregates across all reviews, or one task's reviews when
// taskID is non-zero.
func GetStatistics(db *gorm.DB, taskID uint) (*Statistics, error) {
	q := db.Model(&models.Review{})
	if taskID != 0 {
		q = q.Where("task_id = ?", taskID)
	}
	var reviews []models.Review
	if err := q.Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("review: load statistics: %w", err)
	}

	stats := &Statistics{
		TotalReviews: len(reviews),
		ByType:       map[string]TypeCounts{},
	}
	for _, t := range []string{
		models.ReviewTypeCode, models.ReviewTypeDesign,
		models.ReviewTypeRequirement, models.ReviewTypeTest,
		models.ReviewTypeDocument,
	} {
		stats.ByType[t] = TypeCounts{}
	}

	var reviewSum, responseSum, totalSum float64
	var reviewN, responseN, totalN int
	for _, rv := range reviews {
		switch rv.Status {
		case models.ReviewPending:
			stats.PendingReviews++
		case models.ReviewInProgress:
			stats.InProgressReviews++
		case models.ReviewCompleted:
			stats.CompletedReviews++
		case models.ReviewRejected:
			stats.RejectedReviews++
		case models.ReviewCancelled:
			stats.CancelledReviews++
		}

		tc := stats.ByType[rv.ReviewType]
		tc.Total++
		switch rv.Status {
		case models.ReviewPending:
			tc.Pending++
		case models.ReviewInProgress:
			tc.InProgress++
		case models.ReviewCompleted:
			tc.Completed++
		case models.ReviewRejected:
			tc.Rejected++
		case models.ReviewCancelled:
			tc.Cancelled++
		}
		stats.ByType[rv.ReviewType] = tc

		if rv.ReviewStartedAt != nil && rv.ReviewCompletedAt != nil {
			reviewSum += rv.ReviewCompletedAt.Sub(*rv.ReviewStartedAt).Seconds()
			reviewN++
		}
		if rv.ReviewCompletedAt != nil && rv.ResponseCompletedAt != nil {
			responseSum += rv.ResponseCompletedAt.Sub(*rv.ReviewCompletedAt).Seconds()
			responseN++
		}
		if rv.ResponseCompletedAt != nil {
			totalSum += rv.ResponseCompletedAt.Sub(rv.CreatedAt).Seconds()
			totalN++
		}
	}
	if reviewN > 0 {
		avg := reviewSum / float64(reviewN)
		stats.AvgReviewSeconds = &avg
	}
	if responseN > 0 {
		avg := responseSum / float64(responseN)
		stats.AvgResponseSecs = &avg
	}
	if totalN > 0 {
		avg := totalSum / float64(totalN)
		stats.AvgTotalSeconds = &avg
	}
	return stats, nil
}

var reviewSortColumns = map[string]bool{
	"created_at":          true,
	"updated_at":          true,
	"review_started_at":   true,
	"review_completed_at": true,
}

// Search filters and pages through reviews.
func Search(db *gorm.DB, f SearchFilters) ([]models.Review, error) {
	q := db.Model(&models.Review{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ReviewType != "" {
		q = q.Where("review_type = ?", f.ReviewType)
	}
	if f.Reviewer != "" {
		q = q.Where("reviewer LIKE ?", "%"+f.Reviewer+"%")
	}
	if f.TaskID != 0 {
		q = q.Where("task_id = ?", f.TaskID)
	}

	sort := f.Sort
	if !reviewSortColumns[sort] {
		sort = "created_at"
	}
	order := "DESC"
	if f.Order == "asc" {
		order = "ASC"
	}
	q = q.Order(sort + " " + order)

	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q = q.Limit(limit)

	var reviews []models.Review
	if err := q.Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("review: search: %w", err)
	}
	return reviews, nil
}
