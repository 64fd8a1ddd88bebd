package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
)

// mapErrorToStatus maps errors from the core services to HTTP status codes and
// an ErrorResponse. Authentication failures stay generic.
func mapErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	errResponse := ErrorResponse{Error: core.PublicMessage(err)}

	switch {
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrInvalidEmail), errors.Is(err, core.ErrInvalidPlan):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid request", Details: err.Error()}
	case errors.Is(err, core.ErrTokenExpiredOrInvalid), errors.Is(err, core.ErrPaymentVerificationFailed):
		statusCode = http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthenticated):
		statusCode = http.StatusUnauthorized
	case errors.Is(err, core.ErrIPBanned),
		errors.Is(err, core.ErrBannedAccount),
		errors.Is(err, core.ErrUnverifiedEmail),
		errors.Is(err, core.ErrUnauthorized):
		statusCode = http.StatusForbidden
	case errors.Is(err, core.ErrQuotaExhausted):
		statusCode = http.StatusPaymentRequired
		errResponse.Details = "0 scripts remaining"
	case errors.Is(err, core.ErrProfileNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "Profile not found"}
	case errors.Is(err, core.ErrBanNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "IP ban not found"}
	case errors.Is(err, core.ErrAlreadyVerified):
		statusCode = http.StatusConflict
		errResponse = ErrorResponse{Error: "Email already verified"}
	case errors.Is(err, core.ErrOffline):
		statusCode = http.StatusServiceUnavailable
	default:
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.String("path", c.FullPath()), zap.Int("status", statusCode), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode, errResponse)
}

// bindError answers 400 for a request body that failed binding or validation.
func bindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
}
