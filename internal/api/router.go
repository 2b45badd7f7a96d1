// Package api wires together all HTTP routes of the resource hub.
//
// Route groups:
//   - Public routes (/api/resources, /api/check-proposal-limit,
//     /api/propose-resource) need no credentials. Proposals are capped per
//     client address by the pending-proposal guard, and the general rate
//     limiter throttles raw request volume.
//   - /api/admin-login and /api/admin-logout manage the admin_session cookie
//     and sit behind the stricter auth rate limit.
//   - When audit is enabled, logins and moderation calls are shipped to the
//     audit trail.
//   - /admin-dashboard is a page load: without a session it redirects to the
//     login page. /api/admin/resources answers 401 instead.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resourcehub/resourcehub/internal/api/admin"
	proposalsapi "github.com/resourcehub/resourcehub/internal/api/proposals"
	resourcesapi "github.com/resourcehub/resourcehub/internal/api/resources"
	"github.com/resourcehub/resourcehub/internal/audit"
	"github.com/resourcehub/resourcehub/internal/auth"
	"github.com/resourcehub/resourcehub/internal/config"
	"github.com/resourcehub/resourcehub/internal/jobs"
	"github.com/resourcehub/resourcehub/internal/middleware"
	"github.com/resourcehub/resourcehub/internal/proposals"
	"github.com/resourcehub/resourcehub/internal/resources"
	"github.com/resourcehub/resourcehub/internal/safego"
	"github.com/resourcehub/resourcehub/internal/store"
)

// Version is the server version, overridden at build time with
// -ldflags "-X github.com/resourcehub/resourcehub/internal/api.Version=...".
var Version = "0.1.0"

// healthTimeout bounds the store probe made by /health.
const healthTimeout = 5 * time.Second

// BackgroundServices holds resources that must be released on shutdown, and
// the settings a config reload may replace. cmd/server calls Shutdown after
// the HTTP server has drained.
type BackgroundServices struct {
	rateLimiters []middleware.Limiter
	auditShipper audit.Shipper
	statsJob     *jobs.ResourceStats

	creds    *auth.CredentialStore
	sessions *auth.SessionManager
	guard    *proposals.Guard
}

// Reload applies the settings that can change without a restart: the
// pending-proposal ceiling, and the admin credentials and session secret.
// Changing the admin credentials or secret ends every open admin session.
// Invalid admin settings are skipped and the previous ones stay in force.
func (bg *BackgroundServices) Reload(cfg *config.Config) {
	bg.guard.SetMaxPending(cfg.Proposals.MaxPending)
	if err := cfg.ValidateAdmin(); err != nil {
		slog.Warn("admin settings not reloaded", "error", err)
		return
	}
	bg.creds.Set(auth.CredentialsFromConfig(&cfg.Admin))
	bg.sessions.Reload(&cfg.Admin)
	slog.Info("configuration reloaded", "max_pending", bg.guard.MaxPending())
}

// Shutdown stops the stats job and the rate limiters, then closes the audit
// shippers.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.statsJob != nil {
		bg.statsJob.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Warn("failed to close audit shipper", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router on top of driver.
func NewRouter(ctx context.Context, cfg *config.Config, driver store.Driver) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	sessions, err := auth.SessionManagerFromConfig(&cfg.Admin)
	if err != nil {
		return nil, nil, err
	}

	resourceSvc := resources.NewService(driver)
	proposalSvc := proposals.NewService(resourceSvc, cfg.Proposals.MaxPending)

	bg := &BackgroundServices{
		creds:    auth.NewCredentialStore(auth.CredentialsFromConfig(&cfg.Admin)),
		sessions: sessions,
		guard:    proposalSvc.Guard(),
	}
	var apiLimit, authLimit gin.HandlerFunc
	if cfg.Security.RateLimiting.Enabled {
		apiLimiter, err := middleware.NewLimiter(ctx, &cfg.Security.RateLimiting, middleware.DefaultRateLimitConfig(&cfg.Security.RateLimiting))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		bg.rateLimiters = append(bg.rateLimiters, apiLimiter)

		authLimiter, err := middleware.NewLimiter(ctx, &cfg.Security.RateLimiting, middleware.AuthRateLimitConfig())
		if err != nil {
			bg.Shutdown()
			return nil, nil, fmt.Errorf("failed to create auth rate limiter: %w", err)
		}
		bg.rateLimiters = append(bg.rateLimiters, authLimiter)

		apiLimit = middleware.RateLimitMiddleware(apiLimiter)
		authLimit = middleware.RateLimitMiddleware(authLimiter)
	} else {
		slog.Warn("rate limiting disabled")
		apiLimit = passThrough
		authLimit = passThrough
	}

	var auditTrail gin.HandlerFunc = passThrough
	if cfg.Audit.Enabled {
		shipper, err := audit.NewShipper(&cfg.Audit)
		if err != nil {
			bg.Shutdown()
			return nil, nil, fmt.Errorf("failed to create audit shipper: %w", err)
		}
		bg.auditShipper = shipper
		auditTrail = middleware.AuditMiddleware(shipper, cfg.Audit.LogFailedRequests)
	}

	if cfg.Telemetry.Metrics.Enabled {
		bg.statsJob = jobs.NewResourceStats(resourceSvc, cfg.Telemetry.StatsInterval)
		statsJob := bg.statsJob
		safego.Go(func() { statsJob.Start(ctx) })
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))

	apiHeaders := middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig())
	adminHeaders := middleware.SecurityHeadersMiddleware(middleware.AdminSecurityHeadersConfig())

	router.GET("/health", apiHeaders, healthCheckHandler(resourceSvc))
	router.GET("/version", apiHeaders, versionHandler())

	public := router.Group("/api", apiHeaders, apiLimit)
	{
		catalogue := resourcesapi.NewHandlers(resourceSvc)
		public.GET("/resources", catalogue.ListHandler())

		propose := proposalsapi.NewHandlers(proposalSvc)
		public.GET("/check-proposal-limit", propose.CheckLimitHandler())
		public.POST("/propose-resource", propose.ProposeHandler())
	}

	authHandlers := admin.NewAuthHandlers(bg.creds, sessions, cfg.Admin.CookieSecure)
	router.POST("/api/admin-login", adminHeaders, auditTrail, authLimit, authHandlers.LoginHandler())
	router.POST("/api/admin-logout", adminHeaders, auditTrail, authHandlers.LogoutHandler())

	dashboard := admin.NewDashboardHandler(resourceSvc)
	router.GET("/admin-dashboard", adminHeaders, middleware.RequireAdminSession(sessions), dashboard.PageHandler())

	moderation := router.Group("/api/admin/resources", adminHeaders, auditTrail, middleware.RequireAdminAPI(sessions), apiLimit)
	{
		h := admin.NewResourceHandlers(resourceSvc)
		moderation.GET("", h.ListHandler())
		moderation.GET("/pending", h.PendingHandler())
		moderation.POST("/:id/approve", h.ApproveHandler())
		moderation.POST("/:id/reject", h.RejectHandler())
		moderation.PUT("/:id", h.UpdateHandler())
		moderation.DELETE("/:id", h.DeleteHandler())
	}

	return router, bg, nil
}

func passThrough(c *gin.Context) { c.Next() }

// @Summary      Health check
// @Description  Probe the store with a count query
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "healthy"
// @Failure      503  {object}  map[string]interface{}  "store unreachable"
// @Router       /health [get]
func healthCheckHandler(svc *resources.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if _, err := svc.Count(ctx, nil); err != nil {
			slog.Warn("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "store unreachable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware emits one structured record per request. The output
// format follows the process logger set up by telemetry.SetupLogger.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		switch status := c.Writer.Status(); {
		case status >= 500:
			level = slog.LevelError
		case status >= 400 && status != http.StatusTooManyRequests:
			level = slog.LevelWarn
		}

		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware answers preflight requests and sets CORS headers for the
// configured origins. Credentials are allowed so the admin UI can send the
// session cookie from its own origin.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := "GET, POST, PUT, DELETE, OPTIONS"
	if len(cfg.Security.CORS.AllowedMethods) > 0 {
		methods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		wildcard := false
		for _, o := range cfg.Security.CORS.AllowedOrigins {
			if o == "*" {
				wildcard = true
			}
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			// Credentials are never combined with a wildcard origin.
			if !wildcard {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
