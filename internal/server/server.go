// Package server exposes the task tracker over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nsawada/reqtrack/internal/backup"
	"github.com/nsawada/reqtrack/internal/cas"
	"github.com/nsawada/reqtrack/internal/filestore"
	"github.com/nsawada/reqtrack/internal/hierid"
	"github.com/nsawada/reqtrack/internal/hooks"
	"github.com/nsawada/reqtrack/internal/review"
	"github.com/nsawada/reqtrack/internal/summary"
	"github.com/nsawada/reqtrack/internal/task"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB      *gorm.DB
	CAS     *cas.Store
	Files   *filestore.Store
	Backups *backup.Manager
	Port    int
	Out     io.Writer
}

// Start launches the HTTP API. It blocks until ctx is cancelled, then shuts
// down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.CAS == nil {
		return fmt.Errorf("server: artifact store is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts.DB, opts.CAS, opts.Files, opts.Backups)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// newRouter builds the engine with middleware and all routes registered.
func newRouter(db *gorm.DB, store *cas.Store, files *filestore.Store, backups *backup.Manager) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID())
	registerRoutes(router, db, store, files, backups, hooks.New(store))
	return router
}

// requestID tags every request with a UUID, honoring one supplied by the
// caller.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, task.ErrNotFound),
		errors.Is(err, review.ErrNotFound),
		errors.Is(err, backup.ErrNotFound),
		errors.Is(err, cas.ErrNotFound),
		errors.Is(err, filestore.ErrNotFound),
		errors.Is(err, summary.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, task.ErrInvalidTransition),
		errors.Is(err, hierid.ErrInvalidHierarchy),
		errors.Is(err, filestore.ErrInvalidID):
		status = http.StatusBadRequest
	case errors.Is(err, hierid.ErrAllocationExhausted):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}

// badRequest reports a malformed request body or parameter.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
}
