package server

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nsawada/reqtrack/internal/backup"
	"github.com/nsawada/reqtrack/internal/cas"
	"github.com/nsawada/reqtrack/internal/filestore"
	"github.com/nsawada/reqtrack/internal/task"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, store *cas.Store, files *filestore.Store, backups *backup.Manager, hook task.Hook) {
	// Tasks and the requirement tree.
	router.POST("/tasks", handleCreateTask(db))
	router.GET("/tasks", handleSearchTasks(db))
	router.GET("/tasks/:id", handleGetTask(db))
	router.PUT("/tasks/:id", handleUpdateTask(db))
	router.DELETE("/tasks/:id", handleDeleteTask(db))
	router.PUT("/tasks/:id/parent", handleMoveTask(db))
	router.POST("/tasks/:id/transition", handleTransition(db, hook))
	router.POST("/tasks/:id/comments", handleAddComment(db))
	router.GET("/tasks/:id/comments", handleListComments(db))
	router.GET("/tasks/:id/history", handleListHistory(db))
	router.GET("/tasks/:id/subtasks", handleListSubtasks(db))

	router.POST("/requirements", handleCreateRequirement(db))
	router.GET("/requirements", handleListRequirements(db))
	router.GET("/requirements/:id", handleGetRequirement(db))
	router.GET("/requirements/:id/tasks", handleRequirementTasks(db))

	router.GET("/tree", handleTreeSearch(db))
	router.GET("/tree/:hid", handleTree(db))

	// Artifacts.
	router.POST("/artifacts", handleStoreArtifact(store))
	router.GET("/artifacts/:hash", handleArtifactContent(store))
	router.GET("/artifacts/:hash/info", handleArtifactInfo(store))
	router.POST("/artifacts/:hash/link", handleLinkArtifact(store))
	router.DELETE("/artifacts/:hash", handleDeleteArtifact(store))
	router.GET("/tasks/:id/artifacts", handleTaskArtifacts(db, store))

	// Summaries and outline cards.
	router.POST("/summaries", handleUpsertSummary(db))
	router.GET("/summaries/:hid", handleGetSummary(db))
	router.GET("/summaries/:hid/outline", handleOutlineCard(db, store))

	// Storage layout and the git-backed file store.
	router.GET("/storage/paths", handleStoragePaths(store, files, backups))
	router.GET("/storage/status", handleStorageStatus(store, files))
	router.GET("/storage/cas/:hash/path", handleCASPath(store))
	if files != nil {
		router.POST("/storage/git/init", handleGitInit(files))
		router.POST("/storage/git/commit", handleGitCommit(files))
		router.GET("/storage/git/:hid/path", handleGitPath(files))
		router.GET("/storage/git/:hid/files", handleGitFiles(files))
		router.GET("/storage/git/:hid/outline", handleReadOutline(files))
		router.POST("/storage/git/:hid/outline", handleWriteOutline(files))
		router.GET("/storage/git/:hid/spec", handleReadSpec(files))
		router.POST("/storage/git/:hid/spec", handleWriteSpec(files))
	}

	// Reviews.
	router.POST("/tasks/:id/reviews", handleCreateReview(db))
	router.GET("/tasks/:id/reviews", handleTaskReviews(db))
	router.GET("/reviews", handleSearchReviews(db))
	router.GET("/reviews/statistics", handleReviewStatistics(db))
	router.GET("/reviews/:id", handleGetReview(db))
	router.PUT("/reviews/:id", handleUpdateReview(db))
	router.GET("/reviews/:id/detail", handleReviewDetail(db))
	router.GET("/reviews/:id/timeline", handleReviewTimeline(db))
	router.PUT("/reviews/:id/status", handleReviewStatus(db))
	router.POST("/reviews/:id/comments", handleAddReviewComment(db))
	router.GET("/reviews/:id/comments", handleListReviewComments(db))
	router.POST("/reviews/:id/responses", handleAddReviewResponse(db))
	router.GET("/reviews/:id/responses", handleListReviewResponses(db))
	router.POST("/reviews/:id/responses/:response_id/complete", handleCompleteReviewResponse(db))

	// Backups.
	if backups != nil {
		router.POST("/backups", handleCreateBackup(backups))
		router.GET("/backups", handleListBackups(backups))
		router.POST("/backups/cleanup", handleCleanupBackups(backups))
		router.GET("/backups/:name", handleBackupInfo(backups))
		router.POST("/backups/:name/restore", handleRestoreBackup(backups))
		router.DELETE("/backups/:name", handleDeleteBackup(backups))
	}
}
