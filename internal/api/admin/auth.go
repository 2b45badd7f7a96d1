// auth.go implements the admin login and logout handlers. A successful login
// sets the admin_session cookie holding a signed session token.
package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resourcehub/resourcehub/internal/auth"
	"github.com/resourcehub/resourcehub/internal/middleware"
	"github.com/resourcehub/resourcehub/internal/telemetry"
)

// AuthHandlers handles the admin session endpoints.
type AuthHandlers struct {
	creds        auth.Verifier
	sessions     *auth.SessionManager
	secureCookie bool
}

// NewAuthHandlers creates the login handlers. secureCookie adds the Secure
// attribute to the session cookie and should be set behind HTTPS.
func NewAuthHandlers(creds auth.Verifier, sessions *auth.SessionManager, secureCookie bool) *AuthHandlers {
	return &AuthHandlers{
		creds:        creds,
		sessions:     sessions,
		secureCookie: secureCookie,
	}
}

// LoginRequest is the admin login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// @Summary      Admin login
// @Description  Check the admin credentials and set the admin_session cookie
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Credentials"
// @Success      200  {object}  map[string]interface{}  "success: true"
// @Failure      401  {object}  map[string]interface{}  "Wrong credentials"
// @Failure      500  {object}  map[string]interface{}  "Malformed body or session could not be issued"
// @Router       /api/admin-login [post]
// LoginHandler checks the credentials and starts a session.
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Warn("unreadable admin login body", "ip", c.ClientIP(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to process the request",
			})
			return
		}

		if err := h.creds.Verify(req.Username, req.Password); err != nil {
			telemetry.AdminLoginsTotal.WithLabelValues(telemetry.LoginFailure).Inc()
			if !errors.Is(err, auth.ErrUnauthorized) {
				slog.Error("admin credential check failed", "error", err)
			}
			slog.Warn("admin login rejected", "username", req.Username, "ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		token, err := h.sessions.Issue(req.Username)
		if err != nil {
			slog.Error("failed to issue admin session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to process the request",
			})
			return
		}

		h.setSessionCookie(c, token, int(h.sessions.MaxAge().Seconds()))
		c.Set(middleware.AdminUserKey, req.Username)
		telemetry.AdminLoginsTotal.WithLabelValues(telemetry.LoginSuccess).Inc()
		slog.Info("admin logged in", "username", req.Username, "ip", c.ClientIP())

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// @Summary      Admin logout
// @Description  Clear the admin_session cookie
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "success: true"
// @Router       /api/admin-logout [post]
// LogoutHandler clears the session cookie. Issued tokens stay valid until
// they expire or the secret is rotated.
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.setSessionCookie(c, "", -1)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (h *AuthHandlers) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.SessionCookieName, value, maxAge, "/", "", h.secureCookie, true)
}
