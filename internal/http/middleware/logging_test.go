package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogger points the global logger at a buffer for the test.
func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// logLines decodes the captured JSON lines.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad log line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

// accessLine returns the access-log entry for path.
func accessLine(t *testing.T, buf *bytes.Buffer, path string) map[string]any {
	t.Helper()
	for _, l := range logLines(t, buf) {
		if l["message"] == "request" && l["path"] == path {
			return l
		}
	}
	t.Fatalf("no access line for %s in:\n%s", path, buf.String())
	return nil
}

func serve(r http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})

	cases := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{"generated when absent", "", false},
		{"propagated", "Z-REQ-123", true},
		{"gateway style", "req:7f.a_1", true},
		{"unsafe replaced", "evil id\" injected", false},
		{"too long replaced", strings.Repeat("x", maxRequestIDLength+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hdr := map[string]string{}
			if tc.inbound != "" {
				hdr[strings.ToLower(requestIDHeader)] = tc.inbound
			}
			w := serve(r, http.MethodGet, "/rid", hdr)

			got := w.Header().Get(requestIDHeader)
			if got == "" || got != w.Body.String() {
				t.Fatalf("header %q and context %q disagree", got, w.Body.String())
			}
			if (got == tc.inbound) != tc.keep {
				t.Fatalf("inbound %q -> %q, keep=%v", tc.inbound, got, tc.keep)
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/complaints", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.GET("/complaints/export", func(c *gin.Context) {
		_ = c.Error(errors.New("xlsx writer closed"))
		c.Status(http.StatusBadRequest)
	})
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	serve(r, http.MethodGet, "/complaints?q=water", nil)
	serve(r, http.MethodGet, "/nowhere", nil)
	serve(r, http.MethodGet, "/complaints/export", nil)
	serve(r, http.MethodGet, "/broken", nil)

	ok := accessLine(t, buf, "/complaints")
	if ok["level"] != "info" || ok["status"] != float64(200) || ok["query"] != "q=water" || ok["request_id"] == "" {
		t.Fatalf("unexpected 200 line: %v", ok)
	}
	if l := accessLine(t, buf, "/nowhere"); l["level"] != "warn" {
		t.Fatalf("404 should warn: %v", l)
	}
	exp := accessLine(t, buf, "/complaints/export")
	if exp["level"] != "error" || !strings.Contains(exp["errors"].(string), "xlsx writer closed") {
		t.Fatalf("gin error should log at error: %v", exp)
	}
	if l := accessLine(t, buf, "/broken"); l["level"] != "error" {
		t.Fatalf("5xx should error: %v", l)
	}
}

func TestLogger_MarksReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.POST("/complaints", func(c *gin.Context) {
		c.Set(ctxKeyIdemReplay, true)
		c.Status(http.StatusCreated)
	})

	serve(r, http.MethodPost, "/complaints", map[string]string{HeaderIdempotencyKey: "k-1"})

	l := accessLine(t, buf, "/complaints")
	if l["replay"] != true || l["idempotency_key"] != "k-1" {
		t.Fatalf("expected replay and key in access log: %v", l)
	}
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("global fallback without Logger", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID())
		r.GET("/use", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("plain")
			c.Status(http.StatusOK)
		})
		serve(r, http.MethodGet, "/use", nil)

		lines := logLines(t, buf)
		if len(lines) != 1 || lines[0]["message"] != "plain" {
			t.Fatalf("unexpected lines: %v", lines)
		}
		if _, ok := lines[0]["request_id"]; ok {
			t.Fatalf("fallback logger carries request fields: %v", lines[0])
		}
	})

	t.Run("request scoped under Logger", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), Logger())
		r.GET("/use", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("scoped")
			c.Status(http.StatusOK)
		})
		serve(r, http.MethodGet, "/use", map[string]string{requestIDHeader: "rid-scoped"})

		for _, l := range logLines(t, buf) {
			if l["message"] == "scoped" {
				if l["request_id"] != "rid-scoped" || l["path"] != "/use" {
					t.Fatalf("scoped line lacks request fields: %v", l)
				}
				return
			}
		}
		t.Fatalf("scoped line missing:\n%s", buf.String())
	})
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })
	r.GET("/late-panic", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late kaboom")
	})

	w := serve(r, http.MethodGet, "/panic", map[string]string{requestIDHeader: "rid-panic"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != "rid-panic" {
		t.Fatalf("unexpected body: %v", body)
	}

	// Once the handler has written, no JSON envelope is appended.
	w = serve(r, http.MethodGet, "/late-panic", nil)
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("envelope written after body: %q", w.Body.String())
	}

	panics := 0
	for _, l := range logLines(t, buf) {
		if l["message"] == "panic recovered" {
			if _, ok := l["stack"]; !ok {
				t.Fatalf("panic line without stack: %v", l)
			}
			panics++
		}
	}
	if panics != 2 {
		t.Fatalf("panic lines = %d, want 2", panics)
	}
}

func TestValidRequestIDAndTruncate(t *testing.T) {
	for in, want := range map[string]bool{
		"abc-123":                true,
		"Z.REQ:9_x":              true,
		"":                       false,
		"has space":              false,
		"line\nbreak":            false,
		strings.Repeat("a", 129): false,
		strings.Repeat("a", 128): true,
	} {
		if got := validRequestID(in); got != want {
			t.Fatalf("validRequestID(%q) = %v; want %v", in, got, want)
		}
	}

	for _, tc := range []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
	} {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
