package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
	"github.com/legendstarrx/scriptsea/internal/middleware"
)

// GenerationHandler handles script generation.
type GenerationHandler struct {
	generationService GenerationService
	logger            *zap.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(gs GenerationService, logger *zap.Logger) *GenerationHandler {
	return &GenerationHandler{generationService: gs, logger: logger.Named("generation_handler")}
}

// Generate handles POST /api/v1/scripts/generate.
func (h *GenerationHandler) Generate(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		mapErrorToStatus(c, h.logger, core.ErrUnauthenticated)
		return
	}
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	result, err := h.generationService.Generate(c.Request.Context(), principal, c.ClientIP(), core.GenerationRequest{
		Topic:    req.Topic,
		Platform: req.Platform,
		Tone:     req.Tone,
		Length:   req.Length,
		Language: req.Language,
	})
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
