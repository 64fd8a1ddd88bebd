package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
)

const maxWebhookBody = 65536

// WebhookHandler receives payment gateway webhooks.
type WebhookHandler struct {
	paymentService PaymentService
	logger         *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(ps PaymentService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{paymentService: ps, logger: logger.Named("webhook_handler")}
}

// Handle returns the handler for one gateway. The raw body is verified
// before anything is decoded. Duplicate deliveries are acknowledged with 200.
func (h *WebhookHandler) Handle(v core.WebhookVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Could not read request body"})
			return
		}

		err = h.paymentService.HandleWebhook(c.Request.Context(), v, body, c.Request.Header)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, SuccessResponse{Message: "received"})
		case errors.Is(err, core.ErrDuplicatePayment):
			c.JSON(http.StatusOK, SuccessResponse{Message: "already processed"})
		case errors.Is(err, core.ErrPaymentVerificationFailed):
			h.logger.Warn("webhook rejected", zap.String("gateway", v.Gateway()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Webhook verification failed"})
		default:
			mapErrorToStatus(c, h.logger, err)
		}
	}
}
