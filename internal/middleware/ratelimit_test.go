package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resourcehub/resourcehub/internal/config"
)

// ---------------------------------------------------------------------------
// Profiles
// ---------------------------------------------------------------------------

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig(&config.RateLimitConfig{RequestsPerMinute: 120, Burst: 20})
	if cfg.RequestsPerMinute != 120 || cfg.BurstSize != 20 {
		t.Errorf("got rpm=%d burst=%d, want 120/20", cfg.RequestsPerMinute, cfg.BurstSize)
	}
	if cfg.Name != "api" {
		t.Errorf("Name = %q, want api", cfg.Name)
	}

	fallback := DefaultRateLimitConfig(nil)
	if fallback.RequestsPerMinute != 60 || fallback.BurstSize != 10 {
		t.Errorf("fallback rpm=%d burst=%d, want 60/10", fallback.RequestsPerMinute, fallback.BurstSize)
	}
}

func TestAuthRateLimitConfig(t *testing.T) {
	cfg := AuthRateLimitConfig()
	if cfg.RequestsPerMinute != 10 || cfg.BurstSize != 5 {
		t.Errorf("got rpm=%d burst=%d, want 10/5", cfg.RequestsPerMinute, cfg.BurstSize)
	}
}

// ---------------------------------------------------------------------------
// RateLimiter.Take
// ---------------------------------------------------------------------------

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(rpm, burst int) (*RateLimiter, *fakeClock) {
	rl := NewRateLimiter(RateLimitConfig{
		Name:              "test",
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		CleanupInterval:   time.Hour,
	})
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	rl, _ := newTestLimiter(60, 3)
	defer rl.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := rl.Take(ctx, "a")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: allowed=%v err=%v, want allowed", i+1, d.Allowed, err)
		}
		if d.Remaining != 2-i {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, d.Remaining, 2-i)
		}
	}

	d, _ := rl.Take(ctx, "a")
	if d.Allowed {
		t.Fatal("request past burst allowed")
	}
	if d.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s at 60 rpm", d.RetryAfter)
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	rl, clock := newTestLimiter(60, 1)
	defer rl.Stop()
	ctx := context.Background()

	if d, _ := rl.Take(ctx, "a"); !d.Allowed {
		t.Fatal("first request blocked")
	}
	if d, _ := rl.Take(ctx, "a"); d.Allowed {
		t.Fatal("second request allowed with empty bucket")
	}
	clock.advance(time.Second)
	if d, _ := rl.Take(ctx, "a"); !d.Allowed {
		t.Error("request after refill blocked")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(60, 1)
	defer rl.Stop()
	ctx := context.Background()

	rl.Take(ctx, "a")
	if d, _ := rl.Take(ctx, "b"); !d.Allowed {
		t.Error("client b throttled by client a")
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl, _ := newTestLimiter(60, 1)
	rl.Stop()
	rl.Stop()
}

// ---------------------------------------------------------------------------
// RedisLimiter
// ---------------------------------------------------------------------------

func TestNewRedisLimiter_InvalidURL(t *testing.T) {
	if _, err := NewRedisLimiter(context.Background(), "not a url", AuthRateLimitConfig()); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

func TestNewRedisLimiter_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisLimiter(ctx, "redis://127.0.0.1:1/0", AuthRateLimitConfig()); err == nil {
		t.Error("expected error for unreachable redis")
	}
}

func TestNewLimiter_DefaultsToMemory(t *testing.T) {
	l, err := NewLimiter(context.Background(), &config.RateLimitConfig{}, AuthRateLimitConfig())
	if err != nil {
		t.Fatalf("NewLimiter() error: %v", err)
	}
	defer l.Stop()
	if _, ok := l.(*RateLimiter); !ok {
		t.Errorf("NewLimiter() = %T, want *RateLimiter", l)
	}
}

// ---------------------------------------------------------------------------
// RateLimitMiddleware
// ---------------------------------------------------------------------------

func newRateLimitRouter(l Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(l))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doGet(r http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_BlocksWith429(t *testing.T) {
	rl, _ := newTestLimiter(60, 2)
	defer rl.Stop()
	r := newRateLimitRouter(rl)

	for i := 0; i < 2; i++ {
		if w := doGet(r, "192.0.2.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, w.Code)
		}
	}

	w := doGet(r, "192.0.2.1:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != strconv.Itoa(60) {
		t.Errorf("X-RateLimit-Limit = %q, want 60", got)
	}

	if w := doGet(r, "192.0.2.2:1234"); w.Code != http.StatusOK {
		t.Errorf("other address: status %d, want 200", w.Code)
	}
}

type failingLimiter struct{}

func (failingLimiter) Take(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}
func (failingLimiter) Config() RateLimitConfig { return AuthRateLimitConfig() }
func (failingLimiter) Stop()                   {}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	r := newRateLimitRouter(failingLimiter{})
	if w := doGet(r, "192.0.2.1:1234"); w.Code != http.StatusOK {
		t.Errorf("status %d, want 200 when the limiter errors", w.Code)
	}
}

func TestClientKey_PrefersAdminUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.0.2.9:80"

	if got := clientKey(c); got != "ip:192.0.2.9" {
		t.Errorf("clientKey() = %q, want ip:192.0.2.9", got)
	}
	c.Set(AdminUserKey, "admin")
	if got := clientKey(c); got != "admin:admin" {
		t.Errorf("clientKey() = %q, want admin:admin", got)
	}
}
