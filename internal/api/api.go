// Package api exposes the stored listings over a read-only HTTP API.
package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/avirj/libra/internal/model"
)

// Server wraps the gin engine and the store it reads from.
type Server struct {
	store  model.JobStore
	logger *slog.Logger
	engine *gin.Engine
}

// New builds the router with all routes registered.
func New(store model.JobStore, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{store: store, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/jobs", s.listJobs)
		v1.GET("/jobs/:id", s.getJob)
		v1.GET("/stats", s.stats)
	}

	s.engine = r
	return s
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run blocks serving HTTP on addr.
func (s *Server) Run(addr string) error {
	s.logger.Info("api listening", "addr", addr)
	return s.engine.Run(addr)
}

const defaultListLimit = 100

// listJobs handles GET /api/v1/jobs with optional query filters.
func (s *Server) listJobs(c *gin.Context) {
	filter := model.JobFilter{
		Company:     c.Query("company"),
		Sponsorship: model.Sponsorship(c.Query("sponsorship")),
		Source:      model.Source(c.Query("source")),
		Keyword:     c.Query("q"),
		Limit:       defaultListLimit,
	}

	if raw := c.Query("remote"); raw != "" {
		remote, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "remote must be a boolean"})
			return
		}
		filter.Remote = &remote
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	jobs, err := s.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("list jobs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	if jobs == nil {
		jobs = []model.StoredJob{}
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// getJob handles GET /api/v1/jobs/:id.
func (s *Server) getJob(c *gin.Context) {
	id := c.Param("id")

	job, err := s.store.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		s.logger.Error("get job failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// stats handles GET /api/v1/stats.
func (s *Server) stats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
