package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
	"github.com/legendstarrx/scriptsea/internal/middleware"
)

// AdminHandler exposes the admin surface. Routes are guarded by RequireAdmin.
type AdminHandler struct {
	adminService AdminService
	logger       *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(as AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{adminService: as, logger: logger.Named("admin_handler")}
}

func (h *AdminHandler) actor(c *gin.Context) (string, bool) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		mapErrorToStatus(c, h.logger, core.ErrUnauthorized)
		return "", false
	}
	return principal.Email, true
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// ListUsers handles GET /api/v1/admin/users?limit=&cursor=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, next, err := h.adminService.ListUsers(c.Request.Context(), queryLimit(c), c.Query("cursor"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, UserListResponse{Users: users, NextCursor: next})
}

// UpdatePlan handles PUT /api/v1/admin/users/:userId/plan.
func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	profile, err := h.adminService.UpdatePlan(c.Request.Context(), actor, c.Param("userId"), req.Plan)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Plan updated", Data: profile})
}

// SetBanned handles PUT /api/v1/admin/users/:userId/ban.
func (h *AdminHandler) SetBanned(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req SetBannedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	profile, err := h.adminService.SetBanned(c.Request.Context(), actor, c.Param("userId"), *req.Banned)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	msg := "Account unbanned"
	if *req.Banned {
		msg = "Account banned"
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: msg, Data: profile})
}

// DeleteUser handles DELETE /api/v1/admin/users/:userId.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if err := h.adminService.DeleteUser(c.Request.Context(), actor, c.Param("userId")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RevokeSessions handles POST /api/v1/admin/users/:userId/revoke-sessions.
func (h *AdminHandler) RevokeSessions(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if err := h.adminService.RevokeSessions(c.Request.Context(), actor, c.Param("userId")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Sessions revoked"})
}

// ListBannedIPs handles GET /api/v1/admin/banned-ips.
func (h *AdminHandler) ListBannedIPs(c *gin.Context) {
	entries, err := h.adminService.ListBannedIPs(c.Request.Context())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// BanIP handles POST /api/v1/admin/banned-ips.
func (h *AdminHandler) BanIP(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req BanIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	entry, err := h.adminService.BanIP(c.Request.Context(), actor, req.IP, req.Reason)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "IP banned", Data: entry})
}

// UnbanIP handles DELETE /api/v1/admin/banned-ips/:ip. The entry is marked
// and removed by the next check of that address.
func (h *AdminHandler) UnbanIP(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if err := h.adminService.UnbanIP(c.Request.Context(), actor, c.Param("ip")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "IP unbanned"})
}

// ListPayments handles GET /api/v1/admin/payments?limit=.
func (h *AdminHandler) ListPayments(c *gin.Context) {
	records, err := h.adminService.ListPayments(c.Request.Context(), queryLimit(c))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
