package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
	"github.com/legendstarrx/scriptsea/internal/middleware"
)

// UserHandler handles the caller's own profile.
type UserHandler struct {
	authService AuthService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(as AuthService, logger *zap.Logger) *UserHandler {
	return &UserHandler{authService: as, logger: logger.Named("user_handler")}
}

// GetProfile handles GET /api/v1/user/profile. When the store is unreachable
// the last cached profile is returned with offline set.
func (h *UserHandler) GetProfile(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		mapErrorToStatus(c, h.logger, core.ErrUnauthenticated)
		return
	}
	profile, offline, err := h.authService.Profile(c.Request.Context(), principal)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{Profile: profile, Offline: offline})
}

// RecordIP handles POST /api/v1/user/ip. Only the address the request
// arrived from is recorded; any body is ignored.
func (h *UserHandler) RecordIP(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		mapErrorToStatus(c, h.logger, core.ErrUnauthenticated)
		return
	}
	profile, err := h.authService.RecordIP(c.Request.Context(), principal.ID, c.ClientIP())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "IP recorded", Data: profile})
}
