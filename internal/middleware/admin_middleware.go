package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
)

// AdminEmailHeader names the admin the caller claims to be.
const AdminEmailHeader = "X-Admin-Email"

// RequireAdmin must run after VerifyToken. The X-Admin-Email header and the
// verified token email must both name the configured administrator.
func RequireAdmin(admins core.AdminRegistry, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("admin_guard")
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
			return
		}
		claimed := c.GetHeader(AdminEmailHeader)
		if claimed == "" || claimed != principal.Email || !admins.IsAdmin(claimed) {
			logger.Warn("admin access denied",
				zap.String("uid", principal.ID),
				zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "Unauthorized"})
			return
		}
		c.Next()
	}
}
