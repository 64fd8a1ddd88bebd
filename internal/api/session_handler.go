package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Client frame types on the session stream.
const (
	FrameSession = "session"
	FrameSignOut = "signout"
)

// SessionFrame is sent by the client. A session frame carries a fresh ID
// token each time the client's identity changes.
type SessionFrame struct {
	Type    string `json:"type"`
	IDToken string `json:"idToken,omitempty"`
}

// SessionHandler streams AccountState frames over a websocket.
type SessionHandler struct {
	sessions  SessionFactory
	verifier  core.TokenVerifier
	ipChecker interface {
		CheckIP(ctx context.Context, ip string) error
	}
	origins []string
	logger  *zap.Logger
}

// NewSessionHandler creates a SessionHandler. clientURL is the comma
// separated list of origins allowed to open the stream.
func NewSessionHandler(sessions SessionFactory, verifier core.TokenVerifier, as AuthService, clientURL string, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		verifier:  verifier,
		ipChecker: as,
		origins:   originPatterns(clientURL),
		logger:    logger.Named("session_handler"),
	}
}

func originPatterns(clientURL string) []string {
	var patterns []string
	for _, origin := range strings.Split(clientURL, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			origin = u.Host
		}
		patterns = append(patterns, origin)
	}
	return patterns
}

// Stream handles GET /api/v1/session/stream. Banned addresses are refused
// before the upgrade.
func (h *SessionHandler) Stream(c *gin.Context) {
	ip := c.ClientIP()
	if err := h.ipChecker.CheckIP(c.Request.Context(), ip); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}

	// The server's read and write timeouts would otherwise outlive the
	// upgrade and cut the stream; the pumps keep their own deadlines.
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetReadDeadline(time.Time{}); err != nil {
		h.logger.Debug("clearing read deadline failed", zap.Error(err))
	}
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("clearing write deadline failed", zap.Error(err))
	}

	conn, err := ws.Accept(c.Writer, c.Request, &ws.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Only the newest state matters; an unsent older one is replaced.
	latest := make(chan core.AccountState, 1)
	publish := func(st core.AccountState) {
		select {
		case <-latest:
		default:
		}
		latest <- st
	}

	changes := make(chan *core.Principal)
	runner := h.sessions(publish)
	defer runner.Teardown()
	go runner.Run(ctx, changes)
	go h.writePump(ctx, cancel, conn, latest)

	h.readPump(ctx, conn, changes)
	conn.Close(ws.StatusNormalClosure, "")
}

// readPump turns client frames into session changes until the connection
// closes.
func (h *SessionHandler) readPump(ctx context.Context, conn *ws.Conn, changes chan<- *core.Principal) {
	for {
		var frame SessionFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return
		}

		var principal *core.Principal
		switch frame.Type {
		case FrameSession:
			p, err := h.verifier.Verify(ctx, frame.IDToken)
			if errors.Is(err, core.ErrOffline) {
				// Keep the current session; the client resends on retry.
				h.logger.Warn("session token could not be verified", zap.Error(err))
				continue
			}
			if err != nil {
				h.logger.Debug("session token rejected", zap.Error(err))
			} else {
				principal = p
			}
		case FrameSignOut:
		default:
			h.logger.Debug("unknown session frame", zap.String("type", frame.Type))
			continue
		}

		select {
		case changes <- principal:
		case <-ctx.Done():
			return
		}
	}
}

// writePump sends each published state and pings to detect stale connections.
func (h *SessionHandler) writePump(ctx context.Context, cancel context.CancelFunc, conn *ws.Conn, latest <-chan core.AccountState) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case st := <-latest:
			wctx, done := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, st)
			done()
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
