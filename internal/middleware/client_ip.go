package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/legendstarrx/scriptsea/internal/config"
)

// ConfigureClientIP decides which forwarding headers c.ClientIP() may honour.
// Only peers listed in TRUSTED_PROXIES may set X-Forwarded-For or X-Real-IP;
// with none listed the socket address is used as is. TRUSTED_PLATFORM names a
// CDN whose client header is trusted outright, so it must only be set when the
// server is unreachable except through that CDN.
func ConfigureClientIP(router *gin.Engine, appConfig *config.Config) error {
	var proxies []string
	for _, p := range strings.Split(appConfig.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	if err := router.SetTrustedProxies(proxies); err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(appConfig.TrustedPlatform)) {
	case "":
		router.TrustedPlatform = ""
	case "cloudflare":
		router.TrustedPlatform = gin.PlatformCloudflare
	case "appengine":
		router.TrustedPlatform = gin.PlatformGoogleAppEngine
	default:
		return fmt.Errorf("unknown TRUSTED_PLATFORM %q", appConfig.TrustedPlatform)
	}
	return nil
}
