package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/agents/defense"
	"github.com/surakshanet/surakshanet/internal/models"
)

// DecoyRegistry is the decoy surface the HTTP layer depends on.
type DecoyRegistry interface {
	TrackDecoyInteraction(decoyID, action string, meta map[string]string) error
	AnalyzeDecoyIntelligence(decoyID string) (*models.DecoyIntel, error)
	ActiveDecoys() []models.DecoyDeployment
}

// DecoyHandler serves decoy interaction tracking and intelligence readout.
type DecoyHandler struct {
	decoys DecoyRegistry
	logger *logrus.Logger
}

// NewDecoyHandler creates the decoy handler.
func NewDecoyHandler(decoys DecoyRegistry, logger *logrus.Logger) *DecoyHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &DecoyHandler{decoys: decoys, logger: logger}
}

type trackRequest struct {
	Action    string `json:"action" binding:"required"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// Track handles POST /api/v1/decoy/:id/track.
func (h *DecoyHandler) Track(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_input", "action is required")
		return
	}
	meta := map[string]string{}
	if req.IP != "" {
		meta["ip"] = req.IP
	}
	if req.UserAgent != "" {
		meta["user_agent"] = req.UserAgent
	}
	if err := h.decoys.TrackDecoyInteraction(c.Param("id"), req.Action, meta); err != nil {
		if errors.Is(err, defense.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "no such decoy")
			return
		}
		h.logger.WithError(err).Error("decoy tracking failed")
		respondError(c, http.StatusInternalServerError, "internal", "decoy tracking failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracked": true})
}

// Intel handles GET /api/v1/decoy/:id/intel.
func (h *DecoyHandler) Intel(c *gin.Context) {
	intel, err := h.decoys.AnalyzeDecoyIntelligence(c.Param("id"))
	if err != nil {
		if errors.Is(err, defense.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "no such decoy")
			return
		}
		h.logger.WithError(err).Error("decoy intelligence readout failed")
		respondError(c, http.StatusInternalServerError, "internal", "decoy intelligence readout failed")
		return
	}
	c.JSON(http.StatusOK, intel)
}

// Active handles GET /api/v1/decoys.
func (h *DecoyHandler) Active(c *gin.Context) {
	decoys := h.decoys.ActiveDecoys()
	if decoys == nil {
		decoys = []models.DecoyDeployment{}
	}
	c.JSON(http.StatusOK, gin.H{"decoys": decoys})
}
