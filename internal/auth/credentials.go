// Package auth provides the admin authentication primitives: a static
// credential pair checked on login, and signed session tokens carried in the
// admin_session cookie.
// See internal/middleware/session.go for the request-time guard built on them.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"

	"github.com/resourcehub/resourcehub/internal/config"
)

// BcryptCost is the cost factor used by HashPassword.
const BcryptCost = 12

// ErrUnauthorized is returned for a credential mismatch or an invalid session.
var ErrUnauthorized = errors.New("unauthorized")

// Credentials is the single administrator account.
type Credentials struct {
	Username string
	Password string
	// PasswordHash is a bcrypt hash; when set Password is ignored.
	PasswordHash string
}

// CredentialsFromConfig builds the admin credentials from configuration.
func CredentialsFromConfig(cfg *config.AdminConfig) Credentials {
	return Credentials{
		Username:     cfg.Username,
		Password:     cfg.Password,
		PasswordHash: cfg.PasswordHash,
	}
}

// Verify checks a submitted username and password. Both are always compared
// so a wrong username takes as long as a wrong password.
func (c Credentials) Verify(username, password string) error {
	if c.Username == "" || (c.Password == "" && c.PasswordHash == "") {
		return ErrUnauthorized
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1

	var passOK bool
	if c.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	}

	if !userOK || !passOK {
		return ErrUnauthorized
	}
	return nil
}

// Verifier checks a submitted username and password.
type Verifier interface {
	Verify(username, password string) error
}

// CredentialStore holds the current admin credentials and lets a config
// reload replace them while requests are in flight.
type CredentialStore struct {
	current atomic.Pointer[Credentials]
}

// NewCredentialStore creates a store holding creds.
func NewCredentialStore(creds Credentials) *CredentialStore {
	s := &CredentialStore{}
	s.Set(creds)
	return s
}

// Get returns the current credentials.
func (s *CredentialStore) Get() Credentials {
	return *s.current.Load()
}

// Set replaces the credentials.
func (s *CredentialStore) Set(creds Credentials) {
	s.current.Store(&creds)
}

// Verify implements Verifier against the current credentials.
func (s *CredentialStore) Verify(username, password string) error {
	return s.Get().Verify(username, password)
}

// HashPassword returns a bcrypt hash suitable for admin.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
