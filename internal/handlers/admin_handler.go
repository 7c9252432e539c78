package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/agents/intelligence"
	"github.com/surakshanet/surakshanet/internal/models"
	"github.com/surakshanet/surakshanet/internal/store"
)

// PatternCatalog is the catalog surface the admin endpoints depend on.
type PatternCatalog interface {
	AddPattern(p models.ThreatPattern) (string, error)
	Patterns() []models.ThreatPattern
}

// AdminHandler serves operational statistics and catalog management.
type AdminHandler struct {
	analyzer Analyzer
	catalog  PatternCatalog
	store    store.AnalysisStore
	logger   *logrus.Logger
}

// NewAdminHandler creates the admin handler. store may be nil, disabling
// the analysis lookup endpoints.
func NewAdminHandler(analyzer Analyzer, catalog PatternCatalog, st store.AnalysisStore, logger *logrus.Logger) *AdminHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &AdminHandler{analyzer: analyzer, catalog: catalog, store: st, logger: logger}
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.analyzer.Stats())
}

// AddPattern handles POST /api/v1/admin/patterns.
func (h *AdminHandler) AddPattern(c *gin.Context) {
	var pattern models.ThreatPattern
	if err := c.ShouldBindJSON(&pattern); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_input", "malformed pattern record")
		return
	}
	id, err := h.catalog.AddPattern(pattern)
	if err != nil {
		if errors.Is(err, intelligence.ErrDuplicatePattern) {
			respondError(c, http.StatusConflict, "duplicate_pattern", err.Error())
			return
		}
		respondError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pattern_id": id})
}

// ListPatterns handles GET /api/v1/admin/patterns.
func (h *AdminHandler) ListPatterns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"patterns": h.catalog.Patterns()})
}

// GetAnalysis handles GET /api/v1/analysis/:id.
func (h *AdminHandler) GetAnalysis(c *gin.Context) {
	if h.store == nil {
		respondError(c, http.StatusNotFound, "not_found", "analysis storage disabled")
		return
	}
	result, err := h.store.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrAnalysisNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "no such analysis")
			return
		}
		h.logger.WithError(err).Error("analysis lookup failed")
		respondError(c, http.StatusInternalServerError, "internal", "analysis lookup failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// RecentAnalyses handles GET /api/v1/analysis.
func (h *AdminHandler) RecentAnalyses(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"analyses": []models.AnalysisResult{}})
		return
	}
	results, err := h.store.RecentAnalyses(c.Request.Context(), 50)
	if err != nil {
		h.logger.WithError(err).Error("analysis listing failed")
		respondError(c, http.StatusInternalServerError, "internal", "analysis listing failed")
		return
	}
	if results == nil {
		results = []models.AnalysisResult{}
	}
	c.JSON(http.StatusOK, gin.H{"analyses": results})
}
