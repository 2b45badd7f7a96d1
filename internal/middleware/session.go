// Package middleware provides the Gin middleware of the resource hub: request
// ids, metrics, security headers, throttling, the admin audit trail, and the
// admin session guard.
//
// Ordering is fixed in internal/api/router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS            (every route)
//	Security → RateLimit → Handler                            (public API)
//	Security → Audit → RateLimit(auth) → Login                (admin login)
//	Security → Audit → AdminSession → RateLimit → Handler     (moderation API)
//
// Login throttling runs before any credential work. Audit wraps the session
// check so rejected moderation calls are recorded as failures.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/resourcehub/resourcehub/internal/auth"
)

const (
	// AdminUserKey is the gin.Context key holding the authenticated admin name.
	AdminUserKey = "admin_user"

	// LoginPath is the page unauthenticated admin page loads are sent to.
	LoginPath = "/admin-login"
)

// SessionVerifier resolves a session token to the admin user it belongs to.
type SessionVerifier interface {
	Verify(token string) (string, error)
}

// RequireAdminSession guards admin pages. Without a valid admin_session
// cookie the request is answered with 303 See Other to the login page, with
// the requested path carried in the redirect query parameter.
func RequireAdminSession(sessions SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c, sessions) {
			c.Next()
			return
		}
		c.Redirect(http.StatusSeeOther, LoginRedirect(c.Request.URL.Path))
		c.Abort()
	}
}

// RequireAdminAPI guards the admin JSON endpoints. It answers 401 instead of
// redirecting.
func RequireAdminAPI(sessions SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c, sessions) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Admin session required"})
	}
}

// LoginRedirect returns the login URL that returns the user to path once
// they have signed in.
func LoginRedirect(path string) string {
	return LoginPath + "?redirect=" + url.QueryEscape(path)
}

// authenticate verifies the session cookie and records the admin user.
func authenticate(c *gin.Context, sessions SessionVerifier) bool {
	token, err := c.Cookie(auth.SessionCookieName)
	if err != nil || token == "" {
		return false
	}
	user, err := sessions.Verify(token)
	if err != nil {
		if !errors.Is(err, auth.ErrUnauthorized) {
			slog.Warn("admin session verification failed", "error", err)
		}
		return false
	}
	c.Set(AdminUserKey, user)
	return true
}
