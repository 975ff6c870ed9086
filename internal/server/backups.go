package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nsawada/reqtrack/internal/backup"
)

func handleCreateBackup(backups *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
		}
		// Body is optional; an empty request means auto-name.
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
		}

		info, err := backups.Create(req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, info)
	}
}

func handleListBackups(backups *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := backups.List()
		if err != nil {
			writeError(c, err)
			return
		}
		if list == nil {
			list = []backup.Info{}
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleBackupInfo(backups *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := backups.Info(c.Param("name"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func handleRestoreBackup(backups *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := backups.Restore(c.Param("name"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func handleDeleteBackup(backups *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := backups.Delete(c.Param("name")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleCleanupBackups(backups *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DaysToKeep int `json:"days_to_keep"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
		}
		if req.DaysToKeep <= 0 {
			req.DaysToKeep = 30
		}

		deleted, err := backups.CleanupOld(req.DaysToKeep)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted_count": deleted})
	}
}
