package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"equity-screener/internal/analysis/scoring"
	"equity-screener/internal/models"
)

func (s *Server) handleListPatterns(c *gin.Context) {
	ctx := c.Request.Context()

	if category := c.Query("category"); category != "" {
		patterns, err := s.patterns.ListByCategory(ctx, category)
		if err != nil {
			s.fail(c, err)
			return
		}
		successResponse(c, http.StatusOK, patterns)
		return
	}

	includeCustom := true
	if v := c.Query("include_custom"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "include_custom must be a boolean")
			return
		}
		includeCustom = b
	}

	patterns, err := s.patterns.List(ctx, includeCustom)
	if err != nil {
		s.fail(c, err)
		return
	}
	successResponse(c, http.StatusOK, patterns)
}

func (s *Server) handlePatternCounts(c *gin.Context) {
	counts, err := s.patterns.Counts(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	successResponse(c, http.StatusOK, counts)
}

func (s *Server) handleGetPattern(c *gin.Context) {
	p, err := s.patterns.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	successResponse(c, http.StatusOK, p)
}

func (s *Server) handleCreatePattern(c *gin.Context) {
	var p models.Pattern
	if err := c.ShouldBindJSON(&p); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	created, err := s.patterns.Create(c.Request.Context(), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	successResponse(c, http.StatusCreated, created)
}

func (s *Server) handleUpdatePattern(c *gin.Context) {
	var update models.PatternUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if update.IsEmpty() {
		errorResponse(c, http.StatusBadRequest, "no fields to update")
		return
	}

	updated, err := s.patterns.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		s.fail(c, err)
		return
	}
	successResponse(c, http.StatusOK, updated)
}

func (s *Server) handleDeletePattern(c *gin.Context) {
	id := c.Param("id")
	if err := s.patterns.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	successResponse(c, http.StatusOK, gin.H{"pattern_id": id, "deleted": true})
}

type runRequest struct {
	UseCache *bool `json:"use_cache"`
	Limit    int   `json:"limit"`
}

func (s *Server) handleRunPattern(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.Limit < 0 {
		errorResponse(c, http.StatusBadRequest, "limit must not be negative")
		return
	}

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	id := c.Param("id")
	results, err := s.runner.RunPattern(c.Request.Context(), scoring.RunOptions{
		PatternID: id,
		UseCache:  useCache,
		Limit:     req.Limit,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if results == nil {
		results = []models.MatchResult{}
	}

	successResponse(c, http.StatusOK, gin.H{
		"pattern_id": id,
		"count":      len(results),
		"results":    results,
	})
}

func (s *Server) handleClearCache(c *gin.Context) {
	id := c.Param("id")
	n, err := s.patterns.ClearCache(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	successResponse(c, http.StatusOK, gin.H{"pattern_id": id, "cleared": n})
}
