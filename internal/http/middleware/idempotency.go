// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for unsafe requests that
// append chat messages. The first successful response for a (scope, key)
// pair is recorded; a retried request with the same key receives the
// recorded response, flagged with "Idempotency-Replayed: true", and never
// reaches the handler, so the message is not appended twice.
package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed marks a response served from a recorded result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// ErrNoRecord is returned by IdempotencyStore.Lookup when nothing is recorded.
var ErrNoRecord = errors.New("no idempotency record")

// Recorded is a stored response.
type Recorded struct {
	Status int
	Body   []byte
}

// IdempotencyStore persists recorded responses. Lookup must ignore expired
// records and return ErrNoRecord for them.
type IdempotencyStore interface {
	Lookup(ctx context.Context, scope, key string, now time.Time) (*Recorded, error)
	Save(ctx context.Context, scope, key string, rec Recorded, ttl time.Duration) error
}

// IdempotencyOptions configures Idempotency.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// TTL is how long a recorded response is replayed. Values <= 0 default
	// to 24h.
	TTL time.Duration
	// Scope derives the namespace of a key from the request. The default is
	// the route's :id parameter, or the route path when there is none.
	Scope func(*gin.Context) string
}

// GetIdempotencyKey returns the validated key of the current request.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the response was served from a recorded result.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Idempotency returns the middleware. Requests without the header pass
// through untouched; malformed keys are rejected with 400. Store failures
// are logged and the request is processed normally.
func Idempotency(store IdempotencyStore, opts IdempotencyOptions) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	scopeOf := opts.Scope
	if scopeOf == nil {
		scopeOf = defaultScope
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		ctx := c.Request.Context()
		scope := scopeOf(c)
		rec, err := store.Lookup(ctx, scope, key, time.Now().UTC())
		switch {
		case err == nil && rec != nil:
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
			c.Header(HeaderIdempotencyReplayed, "true")
			c.Data(rec.Status, "application/json; charset=utf-8", rec.Body)
			c.Abort()
			return
		case err != nil && !errors.Is(err, ErrNoRecord):
			LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		}

		bw := &bodyWriter{ResponseWriter: c.Writer}
		c.Writer = bw
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 || bw.buf.Len() == 0 {
			return
		}
		err = store.Save(ctx, scope, key, Recorded{Status: status, Body: bw.buf.Bytes()}, ttl)
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("failed to record idempotent response")
		}
	}
}

func defaultScope(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// bodyWriter tees the response body so it can be recorded.
type bodyWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
