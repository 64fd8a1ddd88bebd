package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
	"github.com/legendstarrx/scriptsea/internal/middleware"
)

// AuthHandler handles the sign-up and sign-in checkpoints.
type AuthHandler struct {
	authService AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: as, logger: logger.Named("auth_handler")}
}

// CheckIP handles GET /api/v1/auth/check-ip.
func (h *AuthHandler) CheckIP(c *gin.Context) {
	ip := c.ClientIP()
	if err := h.authService.CheckIP(c.Request.Context(), ip); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, CheckIPResponse{IP: ip})
}

// Signup handles POST /api/v1/auth/signup. The new account cannot sign in
// until its email is verified.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	profile, err := h.authService.Signup(c.Request.Context(), core.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		IP:          c.ClientIP(),
	})
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Account created. Check your inbox to verify your email address.",
		Data:    profile,
	})
}

// Login handles POST /api/v1/auth/login for an already authenticated token.
func (h *AuthHandler) Login(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		mapErrorToStatus(c, h.logger, core.ErrUnauthenticated)
		return
	}
	profile, offline, err := h.authService.Login(c.Request.Context(), principal, c.ClientIP())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{Profile: profile, Offline: offline})
}

// ResendVerification handles POST /api/v1/auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.authService.ResendVerification(c.Request.Context(), req.Email); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "If the account exists, a verification email has been sent."})
}

// PasswordReset handles POST /api/v1/auth/password-reset.
func (h *AuthHandler) PasswordReset(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.authService.PasswordReset(c.Request.Context(), req.Email); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "If the account exists, a password reset email has been sent."})
}
