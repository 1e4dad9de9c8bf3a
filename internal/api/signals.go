package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"equity-screener/internal/models"
)

func (s *Server) handleListSignals(c *gin.Context) {
	filter := models.SignalFilter{
		StockID:    c.Query("stock_id"),
		Category:   models.SignalCategory(c.Query("category")),
		ActiveOnly: true,
		Limit:      100,
	}

	if filter.Category != "" && !filter.Category.IsValid() {
		errorResponse(c, http.StatusBadRequest, "unknown category: "+string(filter.Category))
		return
	}
	if v := c.Query("min_strength"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			errorResponse(c, http.StatusBadRequest, "min_strength must be a number between 0 and 100")
			return
		}
		filter.MinStrength = f
	}
	if v := c.Query("active_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "active_only must be a boolean")
			return
		}
		filter.ActiveOnly = b
	}
	limit, ok := queryLimit(c, filter.Limit)
	if !ok {
		return
	}
	filter.Limit = limit

	records, err := s.signals.Query(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	if records == nil {
		records = []models.SignalRecord{}
	}
	successResponse(c, http.StatusOK, records)
}

func (s *Server) handleTopSignals(c *gin.Context) {
	limit, ok := queryLimit(c, 20)
	if !ok {
		return
	}

	records, err := s.signals.TopOpportunities(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if records == nil {
		records = []models.SignalRecord{}
	}
	successResponse(c, http.StatusOK, records)
}

func (s *Server) handleSignalsByType(c *gin.Context) {
	category := models.SignalCategory(c.Param("category"))
	if !category.IsValid() {
		errorResponse(c, http.StatusBadRequest, "unknown category: "+string(category))
		return
	}
	var minStrength float64
	if v := c.Query("min_strength"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			errorResponse(c, http.StatusBadRequest, "min_strength must be a number between 0 and 100")
			return
		}
		minStrength = f
	}
	limit, ok := queryLimit(c, 100)
	if !ok {
		return
	}

	records, err := s.signals.SignalsByType(c.Request.Context(), category, minStrength, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if records == nil {
		records = []models.SignalRecord{}
	}
	successResponse(c, http.StatusOK, records)
}

func (s *Server) handleStockSignals(c *gin.Context) {
	activeOnly := true
	if v := c.Query("active_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "active_only must be a boolean")
			return
		}
		activeOnly = b
	}

	records, err := s.signals.SignalsForStock(c.Request.Context(), c.Param("id"), activeOnly)
	if err != nil {
		s.fail(c, err)
		return
	}
	if records == nil {
		records = []models.SignalRecord{}
	}
	successResponse(c, http.StatusOK, records)
}

func (s *Server) handleDetectStock(c *gin.Context) {
	id := c.Param("id")
	detected, err := s.signals.DetectForStock(c.Request.Context(), id, true)
	if err != nil {
		s.fail(c, err)
		return
	}
	if detected == nil {
		detected = []models.Signal{}
	}
	successResponse(c, http.StatusOK, gin.H{
		"stock_id": id,
		"count":    len(detected),
		"signals":  detected,
	})
}

func queryLimit(c *gin.Context, def int) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 1000 {
		errorResponse(c, http.StatusBadRequest, "limit must be between 1 and 1000")
		return 0, false
	}
	return n, true
}
