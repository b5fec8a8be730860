package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"time"
	"user_service/internal/access"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID reuses the client's X-Request-ID or generates one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

// requestLogger logs the route template rather than the raw path so emails
// in path parameters stay out of the logs.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		h.log.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String(requestIDKey, c.GetString(requestIDKey)),
		)
	}
}

// WebOptions configures the browser-facing middleware.
type WebOptions struct {
	// AllowedOrigins are the CORS origins; empty or "*" allows any.
	AllowedOrigins        []string
	ContentSecurityPolicy string
	HSTSMaxAge            time.Duration
}

// corsMiddleware answers preflight requests and exposes the renewed session
// token header to browser clients.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", access.TokenHeader, requestIDHeader},
		ExposeHeaders: []string{access.RenewedTokenHeader, requestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}

	return cors.New(cfg)
}

func securityHeaders(opts WebOptions) gin.HandlerFunc {
	return secure.New(secure.Config{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: opts.ContentSecurityPolicy,
		STSSeconds:            int64(opts.HSTSMaxAge.Seconds()),
		STSIncludeSubdomains:  true,
	})
}
