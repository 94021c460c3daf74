// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// RedactingLogger emits one structured access log line per request with
// personal data scrubbed: session tokens and cookies are masked, and emails
// and UUIDs are replaced in query strings and header values. Request and
// response bodies are never logged; they carry passwords and chat content.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// RedactOptions configures additional scrubbing.
type RedactOptions struct {
	// MaskHeaders are extra header names whose values are replaced with
	// "[REDACTED]". Matching is case-insensitive.
	MaskHeaders []string
	// MaskParams are extra query parameter names whose values are replaced.
	MaskParams []string
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
)

type redactor struct {
	headers map[string]struct{}
	params  map[string]struct{}
}

func newRedactor(opts RedactOptions) *redactor {
	r := &redactor{
		headers: map[string]struct{}{
			"authorization": {},
			"cookie":        {},
			"set-cookie":    {},
		},
		params: map[string]struct{}{
			"password":      {},
			"token":         {},
			"authorization": {},
		},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.headers[h] = struct{}{}
		}
	}
	for _, p := range opts.MaskParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			r.params[p] = struct{}{}
		}
	}
	return r
}

// text replaces UUIDs and then emails.
func (r *redactor) text(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	return emailRE.ReplaceAllString(s, "[REDACTED:email]")
}

func (r *redactor) query(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return r.text(raw)
	}
	for k, vv := range vals {
		if _, ok := r.params[strings.ToLower(k)]; ok {
			vals[k] = []string{"[REDACTED]"}
			continue
		}
		for i := range vv {
			vv[i] = r.text(vv[i])
		}
	}
	return vals.Encode()
}

func (r *redactor) header(name string, values []string) string {
	if _, ok := r.headers[strings.ToLower(name)]; ok {
		return "[REDACTED]"
	}
	return r.text(strings.Join(values, ", "))
}

// RedactingLogger returns the access-log middleware. It logs through the
// request-scoped logger, so place it after Logger. 5xx responses log at error
// level, 4xx at warn and the rest at info.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	red := newRedactor(opts)

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = red.text(c.Request.URL.Path)
		}
		query := red.query(c.Request.URL.RawQuery)
		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			headers[k] = red.header(k, vv)
		}

		c.Next()

		status := c.Writer.Status()
		lg := LoggerFrom(c)
		ev := lg.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = lg.Error()
		case status >= 400:
			ev = lg.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", red.text(c.Errors.String()))
		}

		ev.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Str("user_id", UserID(c)).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
