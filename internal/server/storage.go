package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nsawada/reqtrack/internal/backup"
	"github.com/nsawada/reqtrack/internal/cas"
	"github.com/nsawada/reqtrack/internal/filestore"
)

func handleStoragePaths(store *cas.Store, files *filestore.Store, backups *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		paths := gin.H{
			"cas_root":       store.Root(),
			"cas_uri_prefix": "cas://sha256/",
		}
		if files != nil {
			paths["git_repo_path"] = files.Root()
			paths["file_storage_root"] = files.Root()
			paths["git_uri_prefix"] = "git://"
		}
		if backups != nil {
			paths["backup_root"] = backups.Root()
		}
		c.JSON(http.StatusOK, paths)
	}
}

func handleStorageStatus(store *cas.Store, files *filestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"cas_root": store.Root()}
		if files != nil {
			status["git_repo_path"] = files.Root()
			status["git_initialized"] = files.IsGitRepo()
			status["file_count"] = files.FileCount()
		}
		c.JSON(http.StatusOK, status)
	}
}

func handleCASPath(store *cas.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := store.GetInfo(c.Param("hash"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sha256":   info.SHA256,
			"cas_path": info.Path,
			"cas_uri":  info.URI,
		})
	}
}

func handleGitInit(files *filestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := files.Init(); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"git_repo_path":   files.Root(),
			"git_initialized": true,
		})
	}
}

func handleGitCommit(files *filestore.Store) gin.HandlerFunc {
	type request struct {
		Message string `json:"message" binding:"required"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := files.Commit(req.Message); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": req.Message})
	}
}

func handleGitPath(files *filestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		hid := c.Param("hid")
		path, err := files.TaskPath(hid)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"hierarchical_id": hid,
			"path":            path,
		})
	}
}

func handleGitFiles(files *filestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		listed, err := files.ListFiles(c.Param("hid"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, listed)
	}
}

func handleReadOutline(files *filestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		outline, err := files.ReadOutline(c.Param("hid"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, outline)
	}
}

func handleWriteOutline(files *filestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		hid := c.Param("hid")
		var outline map[string]interface{}
		if err := c.ShouldBindJSON(&outline); err != nil {
			badRequest(c, err)
			return
		}
		if err := files.WriteOutline(hid, outline); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"hierarchical_id": hid,
			"uri":             mustURI(files, hid, "outline"),
		})
	}
}

func handleReadSpec(files *filestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		hid := c.Param("hid")
		content, err := files.ReadSpec(hid)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"hierarchical_id": hid,
			"content":         content,
		})
	}
}

func handleWriteSpec(files *filestore.Store) gin.HandlerFunc {
	type request struct {
		Content string `json:"content" binding:"required"`
	}
	return func(c *gin.Context) {
		hid := c.Param("hid")
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := files.WriteSpec(hid, req.Content); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"hierarchical_id": hid,
			"uri":             mustURI(files, hid, "spec"),
		})
	}
}

// mustURI is used after a successful write, where the id is already known
// to be valid.
func mustURI(files *filestore.Store, hid, fileType string) string {
	uri, err := files.URI(hid, fileType)
	if err != nil {
		return ""
	}
	return uri
}
