package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"
)

func testContext(remote string, hdr map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/complaints", nil)
	c.Request.RemoteAddr = remote
	for k, v := range hdr {
		c.Request.Header.Set(k, v)
	}
	return c
}

func TestKeyFuncs(t *testing.T) {
	cases := []struct {
		name string
		fn   keyFunc
		hdr  map[string]string
		want string
	}{
		{"client ip", KeyByClientIP(), nil, "ip:203.0.113.9"},
		{"header absent falls back to ip", KeyByHeaderOrIP("X-Client-ID"), nil, "ip:203.0.113.9"},
		{"header present", KeyByHeaderOrIP("X-Client-ID"), map[string]string{"X-Client-ID": "intake-kiosk-4"}, "client:intake-kiosk-4"},
		{"empty header name ignores header", KeyByHeaderOrIP(""), map[string]string{"X-Client-ID": "x"}, "ip:203.0.113.9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.fn(testContext("203.0.113.9:12345", tc.hdr)); got != tc.want {
				t.Fatalf("key = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewRateLimiter_BurstCoercionAndReuse(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByClientIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d, want 1", rl.burst)
	}
	lim := rl.getVisitor("k1")
	if lim == nil || rl.getVisitor("k1") != lim {
		t.Fatalf("limiter not reused for the same key")
	}
	if rl.getVisitor("k2") == lim {
		t.Fatalf("distinct keys share a limiter")
	}
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByClientIP())
	rl.ttl = time.Minute

	rl.mu.Lock()
	rl.visitors["idle"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.visitors["recent"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now()}
	rl.cleanupN = gcEvery - 1 // next lookup sweeps
	rl.mu.Unlock()

	_ = rl.getVisitor("new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["idle"]; ok {
		t.Fatalf("idle visitor survived the sweep")
	}
	for _, k := range []string{"recent", "new"} {
		if _, ok := rl.visitors[k]; !ok {
			t.Fatalf("visitor %q missing after sweep", k)
		}
	}
	if rl.cleanupN != 0 {
		t.Fatalf("sweep counter not reset: %d", rl.cleanupN)
	}
}

func TestIsRateBypass(t *testing.T) {
	c := testContext("192.0.2.1:1", nil)
	if IsRateBypass(c) {
		t.Fatalf("bypass set by default")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("bypass not read")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("non-bool value read as bypass")
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 1, KeyByClientIP())

	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/complaints", func(c *gin.Context) { c.String(http.StatusOK, "[]") })

	get := func(h http.Handler, rid string) *httptest.ResponseRecorder {
		return serve(h, http.MethodGet, "/complaints", map[string]string{requestIDHeader: rid})
	}

	if w := get(r, "rid-1"); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	w := get(r, "rid-2")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: want 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q, want 1", got)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "rate_limited" || body["message"] != "rate limit exceeded" || body["request_id"] != "rid-2" {
		t.Fatalf("unexpected body: %v", body)
	}

	// A flagged replay skips the exhausted bucket.
	replay := gin.New()
	replay.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() }, rl.Handler())
	replay.GET("/complaints", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	if w := get(replay, "rid-3"); w.Code != http.StatusOK {
		t.Fatalf("replay: want 200, got %d", w.Code)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := []struct {
		rps  float64
		want int
	}{
		{0, 60},
		{-3, 60},
		{0.25, 4},
		{0.3, 4},
		{1, 1},
		{50, 1},
	}
	for _, tc := range cases {
		if got := retryAfterSeconds(tc.rps); got != tc.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tc.rps, got, tc.want)
		}
	}
}

func TestRateLimiter_CountsRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(0.5, 1, KeyByHeaderOrIP("X-Client-ID")).Handler())
	r.GET("/limited", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(rateLimited.WithLabelValues("/limited"))

	send := func(client string) *httptest.ResponseRecorder {
		return serve(r, http.MethodGet, "/limited", map[string]string{"X-Client-ID": client})
	}

	if w := send("kiosk-a"); w.Code != http.StatusNoContent {
		t.Fatalf("first request: %d", w.Code)
	}
	w := send("kiosk-a")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: want 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q, want 2", got)
	}
	// separate bucket per client id
	if w := send("kiosk-b"); w.Code != http.StatusNoContent {
		t.Fatalf("other client: %d", w.Code)
	}

	if got := testutil.ToFloat64(rateLimited.WithLabelValues("/limited")); got != before+1 {
		t.Fatalf("rejections = %v, want %v", got, before+1)
	}
}
