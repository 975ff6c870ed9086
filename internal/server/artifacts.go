package server

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nsawada/reqtrack/internal/cas"
	"github.com/nsawada/reqtrack/internal/task"
)

func handleStoreArtifact(store *cas.Store) gin.HandlerFunc {
	type request struct {
		Content       string `json:"content" binding:"required"`
		MediaType     string `json:"media_type"`
		SourceTaskHID string `json:"source_task_hid"`
		Purpose       string `json:"purpose"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		content, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			badRequest(c, fmt.Errorf("content is not valid base64: %w", err))
			return
		}
		hash, err := store.StoreBytes(content, req.MediaType, req.SourceTaskHID, req.Purpose)
		if err != nil {
			writeError(c, err)
			return
		}
		info, err := store.GetInfo(hash)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, info)
	}
}

func handleLinkArtifact(store *cas.Store) gin.HandlerFunc {
	type request struct {
		TaskHID string `json:"task_hid" binding:"required"`
		Role    string `json:"role" binding:"required"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		hash := c.Param("hash")
		if err := store.Link(req.TaskHID, hash, req.Role); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"task_hid": req.TaskHID,
			"sha256":   hash,
			"role":     req.Role,
		})
	}
}

func handleDeleteArtifact(store *cas.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Delete(c.Param("hash")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleArtifactContent(store *cas.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := c.Param("hash")
		info, err := store.GetInfo(hash)
		if err != nil {
			writeError(c, err)
			return
		}
		content, err := store.Retrieve(hash)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, info.MediaType, content)
	}
}

func handleArtifactInfo(store *cas.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := store.GetInfo(c.Param("hash"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func handleTaskArtifacts(db *gorm.DB, store *cas.Store) gin.HandlerFunc {
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
		infos, err := store.TaskArtifacts(t.HierarchicalID, c.Query("role"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, infos)
	}
}
