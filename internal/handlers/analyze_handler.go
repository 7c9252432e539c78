// Package handlers exposes the analysis pipeline over HTTP.
package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/core"
	"github.com/surakshanet/surakshanet/internal/models"
)

// maxUploadBytes bounds a single media part.
const maxUploadBytes = 64 << 20

// Analyzer is the pipeline surface the HTTP layer depends on.
type Analyzer interface {
	AnalyzeComplete(ctx context.Context, content *models.ContentData, opts models.AnalysisOptions) (*models.AnalysisResult, error)
	Stats() map[string]interface{}
}

// AnalyzeHandler serves content analysis requests.
type AnalyzeHandler struct {
	analyzer Analyzer
	logger   *logrus.Logger
}

// NewAnalyzeHandler creates the analysis handler.
func NewAnalyzeHandler(analyzer Analyzer, logger *logrus.Logger) *AnalyzeHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &AnalyzeHandler{analyzer: analyzer, logger: logger}
}

// Analyze handles POST /api/v1/analyze/complete. The request is a
// multipart form
// with content_type, text_content, sender, subject, auto_respond,
// deploy_decoy, frame_interval_s and optional image/video file parts.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	contentType := models.ContentType(c.PostForm("content_type"))
	if contentType == "" {
		contentType = models.ContentTypeEmail
	}

	content := &models.ContentData{
		ContentType: contentType,
		TextContent: c.PostForm("text_content"),
		Sender:      c.PostForm("sender"),
		Subject:     c.PostForm("subject"),
	}

	if data, err := readFilePart(c, "image"); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_input", "unreadable image part")
		return
	} else if data != nil {
		content.ImageBytes = data
	}
	if data, err := readFilePart(c, "video"); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_input", "unreadable video part")
		return
	} else if data != nil {
		content.VideoBytes = data
	}

	opts := models.DefaultAnalysisOptions()
	opts.AutoRespond = parseBoolForm(c, "auto_respond", false)
	opts.DeployDecoy = parseBoolForm(c, "deploy_decoy", false)
	if v := c.PostForm("frame_interval_s"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.FrameIntervalS = n
		}
	}
	if v := c.PostForm("confidence_threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			opts.ConfidenceThreshold = f
		}
	}

	result, err := h.analyzer.AnalyzeComplete(c.Request.Context(), content, opts)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			respondError(c, http.StatusBadRequest, "invalid_input", err.Error())
		case errors.Is(err, context.Canceled):
			respondError(c, 499, "cancelled", "client closed request")
		default:
			h.logger.WithError(err).Error("analysis failed")
			respondError(c, http.StatusInternalServerError, "internal", "analysis failed")
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

func readFilePart(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	return readUpload(fh)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes))
}

func parseBoolForm(c *gin.Context, field string, fallback bool) bool {
	v := c.PostForm(field)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
