package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/legendstarrx/scriptsea/internal/config"
)

// CORSMiddleware allows the web client origins in CLIENT_URL, which may be a
// comma-separated list.
func CORSMiddleware(appConfig *config.Config) (gin.HandlerFunc, error) {
	if appConfig == nil || appConfig.ClientURL == "" {
		return nil, errors.New("client url is not configured for CORS")
	}
	var origins []string
	for _, o := range strings.Split(appConfig.ClientURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", AdminEmailHeader, RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
		AllowCredentials: true,
		AllowWebSockets:  true,
		MaxAge:           12 * time.Hour,
	}), nil
}
