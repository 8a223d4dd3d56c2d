// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RedactingLogger is the access logger used when LOG_REDACT is on. Bodies are
// never read: complaint uploads carry consumer numbers and free text. Query
// strings and header values are pattern-scrubbed, and configured headers and
// query parameters are masked outright.
package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const redacted = "[REDACTED]"

// Applied in this order: the phone pattern would otherwise eat the digit
// runs inside a UUID.
var scrubPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	// Digits only, e.g. "+1 212-555-1212", "(212) 555-1212".
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are masked in addition to Authorization, Cookie and
	// Set-Cookie. Case-insensitive.
	MaskHeaders []string
	// MaskParams are query parameters whose values are always masked. Nil
	// means {"q"}, the free-text complaint search.
	MaskParams []string
}

type scrubber struct {
	headers map[string]struct{}
	params  map[string]struct{}
}

func newScrubber(opts RedactOptions) scrubber {
	s := scrubber{
		headers: map[string]struct{}{"authorization": {}, "cookie": {}, "set-cookie": {}},
		params:  map[string]struct{}{},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			s.headers[h] = struct{}{}
		}
	}
	params := opts.MaskParams
	if params == nil {
		params = []string{"q"}
	}
	for _, p := range params {
		if p = strings.TrimSpace(p); p != "" {
			s.params[p] = struct{}{}
		}
	}
	return s
}

func (scrubber) text(v string) string {
	for _, p := range scrubPatterns {
		v = p.re.ReplaceAllString(v, p.repl)
	}
	return v
}

// query scrubs a raw query string pair by pair, keeping the original
// encoding of anything left in place.
func (s scrubber) query(raw string) string {
	if raw == "" {
		return ""
	}
	pairs := strings.Split(raw, "&")
	for i, pair := range pairs {
		key, _, hasValue := strings.Cut(pair, "=")
		if name, err := url.QueryUnescape(key); err == nil && hasValue {
			if _, ok := s.params[name]; ok {
				pairs[i] = key + "=" + redacted
				continue
			}
		}
		pairs[i] = s.text(pair)
	}
	return strings.Join(pairs, "&")
}

func (s scrubber) header(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := s.headers[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = s.text(strings.Join(vv, ", "))
	}
	return out
}

// RedactingLogger logs one "http_request" line per request with scrubbed
// query and headers, at the same levels as Logger. The request-scoped
// logger it attaches carries only the request id, method and route.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	s := newScrubber(opts)

	return func(c *gin.Context) {
		start := time.Now()
		query := truncate(s.query(c.Request.URL.RawQuery), maxQueryLogLength)
		headers := s.header(c.Request.Header)

		scoped := log.With().
			Str("request_id", requestIDOf(c)).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Logger()
		c.Set(loggerKey, &scoped)

		c.Next()

		status := c.Writer.Status()
		accessEvent(&scoped, c, status).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Bool("replay", IsReplay(c)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
