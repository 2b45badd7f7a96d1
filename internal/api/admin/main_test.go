package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/resourcehub/resourcehub/internal/auth"
	"github.com/resourcehub/resourcehub/internal/db/models"
	"github.com/resourcehub/resourcehub/internal/resources"
	"github.com/resourcehub/resourcehub/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "admin-handlers-test-secret-32chars!!"

func newSessions(t *testing.T) *auth.SessionManager {
	t.Helper()
	m, err := auth.NewSessionManager(testSecret, 7*24*time.Hour)
	require.NoError(t, err)
	return m
}

func newResources(t *testing.T, items ...models.NewResource) (*resources.Service, []models.Resource) {
	t.Helper()
	svc := resources.NewService(store.NewMemoryDriver())
	rows, err := svc.CreateMany(context.Background(), items...)
	require.NoError(t, err)
	return svc, rows
}

func resource(name string, active bool, tags ...string) models.NewResource {
	ip := "203.0.113.7"
	return models.NewResource{
		Name:      name,
		URL:       "https://example.com/" + name,
		Category:  tags,
		IsActive:  active,
		IPAddress: &ip,
	}
}

func send(r http.Handler, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
