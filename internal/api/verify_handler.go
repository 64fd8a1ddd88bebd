package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
)

// VerifyHandler serves the link in verification emails.
type VerifyHandler struct {
	verification VerificationService
	clientURL    string
	logger       *zap.Logger
}

// NewVerifyHandler creates a VerifyHandler redirecting to clientURL. When
// clientURL lists several origins the first one is used.
func NewVerifyHandler(vs VerificationService, clientURL string, logger *zap.Logger) *VerifyHandler {
	if i := strings.IndexByte(clientURL, ','); i >= 0 {
		clientURL = clientURL[:i]
	}
	return &VerifyHandler{
		verification: vs,
		clientURL:    strings.TrimRight(strings.TrimSpace(clientURL), "/"),
		logger:       logger.Named("verify_handler"),
	}
}

// Verify handles GET /verify?token=. It always redirects to the client login
// page with verified=1 or verified=0.
func (h *VerifyHandler) Verify(c *gin.Context) {
	verified := "1"
	if _, err := h.verification.Consume(c.Request.Context(), c.Query("token")); err != nil {
		verified = "0"
		if !errors.Is(err, core.ErrTokenExpiredOrInvalid) {
			h.logger.Error("verification failed", zap.Error(err))
		}
	}
	c.Redirect(http.StatusFound, h.clientURL+"/login?verified="+verified)
}
