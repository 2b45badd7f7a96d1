// session.go issues and verifies the HS256 tokens stored in the admin session
// cookie. Sessions are stateless. Once bound to the admin credentials, the
// signing key is derived from the secret and the current password, so rotating
// either the secret or the credentials revokes every issued session.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/resourcehub/resourcehub/internal/config"
)

const (
	// SessionCookieName is the cookie carrying the admin session token.
	SessionCookieName = "admin_session"

	// DefaultSessionMaxAge is the session lifetime when none is configured.
	DefaultSessionMaxAge = 7 * 24 * time.Hour

	sessionIssuer = "resourcehub"
)

// SessionClaims are the claims of an admin session token.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionManager signs and verifies admin session tokens.
type SessionManager struct {
	mu       sync.RWMutex
	secret   []byte
	key      []byte
	username string
	maxAge   time.Duration
	now      func() time.Time
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewSessionManager creates a session manager signing with secret alone and
// accepting any subject. Without a secret a random one is generated and
// sessions will not survive a restart.
func NewSessionManager(secret string, maxAge time.Duration) (*SessionManager, error) {
	if secret == "" {
		generated, err := generateRandomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		secret = generated
		slog.Warn("admin.session_secret not set, using a generated secret; admin sessions will not persist across restarts")
	} else if len(secret) < 32 {
		slog.Warn("admin.session_secret is shorter than the recommended 32 characters")
	}
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &SessionManager{
		secret: []byte(secret),
		key:    []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// SessionManagerFromConfig creates a session manager from the admin section,
// bound to the configured credentials.
func SessionManagerFromConfig(cfg *config.AdminConfig) (*SessionManager, error) {
	m, err := NewSessionManager(cfg.SessionSecret, cfg.SessionMaxAge)
	if err != nil {
		return nil, err
	}
	m.Bind(CredentialsFromConfig(cfg))
	return m, nil
}

// Bind ties sessions to creds: only tokens issued for creds.Username under
// the current password verify. Tokens issued before the call stop verifying
// whenever the username or password differs from the previous binding.
func (m *SessionManager) Bind(creds Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username = creds.Username
	m.key = deriveSessionKey(m.secret, creds)
}

// Reload applies a changed admin section: a new non-empty secret replaces the
// current one, then the credentials are rebound. The session lifetime is
// fixed at construction.
func (m *SessionManager) Reload(cfg *config.AdminConfig) {
	m.mu.Lock()
	if cfg.SessionSecret != "" {
		m.secret = []byte(cfg.SessionSecret)
	}
	m.mu.Unlock()
	m.Bind(CredentialsFromConfig(cfg))
}

// deriveSessionKey mixes the credential into the signing key. The hash takes
// precedence over the plain password, matching Credentials.Verify.
func deriveSessionKey(secret []byte, creds Credentials) []byte {
	credential := creds.Password
	if creds.PasswordHash != "" {
		credential = creds.PasswordHash
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(creds.Username))
	mac.Write([]byte{0})
	mac.Write([]byte(credential))
	return mac.Sum(nil)
}

// MaxAge returns the session lifetime.
func (m *SessionManager) MaxAge() time.Duration {
	return m.maxAge
}

// Issue signs a session token for username.
func (m *SessionManager) Issue(username string) (string, error) {
	m.mu.RLock()
	key := m.key
	m.mu.RUnlock()

	now := m.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return token, nil
}

// Verify parses a session token and returns the username it was issued for.
// Any failure, including expiry or a subject other than the bound username,
// yields ErrUnauthorized.
func (m *SessionManager) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	m.mu.RLock()
	key, username := m.key, m.username
	m.mu.RUnlock()

	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	if username != "" && !hmac.Equal([]byte(claims.Subject), []byte(username)) {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}
