// Package store is the HTTP client for the record store: a REST-style CRUD
// service holding users, chats, chat messages and saved courses.
//
// Requests carry "Authorization: Bearer <token>" and "X-User-Id" when the
// session knows them. Non-2xx responses are mapped to ErrUnauthorized,
// ErrNotFound or ErrConflict where a caller can act on them, and to *Error
// otherwise. A 401 additionally fires the OnUnauthorized hook so the session
// can drop its rejected credentials.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Sentinel errors. *Error values wrap one of them when the status matches.
var (
	ErrUnauthorized = errors.New("store: unauthorized")
	ErrNotFound     = errors.New("store: not found")
	ErrConflict     = errors.New("store: conflict")
)

// Error is a failed store call.
type Error struct {
	Op      string // e.g. "GET /chats"
	Status  int    // 0 for transport failures
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("store %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("store %s: status %d", e.Op, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Session supplies the identity headers of outgoing requests.
type Session interface {
	Token() string
	UserID() string
}

// Observer records upstream call latencies; it may be nil.
type Observer interface {
	ObserveUpstream(service, op string, status int, elapsed time.Duration)
}

// Client talks to the record store. Safe for concurrent use.
type Client struct {
	baseURL string
	hc      *http.Client
	session Session
	timeout time.Duration
	obs     Observer
	maxBody int64

	onUnauthorized func(context.Context)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithSession sets the identity source for request headers.
func WithSession(s Session) Option { return func(c *Client) { c.session = s } }

// WithTimeout bounds every call. Zero means no client-side deadline.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithObserver registers o for latency metrics.
func WithObserver(o Observer) Option { return func(c *Client) { c.obs = o } }

// WithMaxResponseSize caps decoded response bodies. Zero means unlimited.
func WithMaxResponseSize(n int64) Option { return func(c *Client) { c.maxBody = n } }

// OnUnauthorized registers fn, called after any 401 response.
func OnUnauthorized(fn func(context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New returns a client for the store at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	op := method + " " + opPath(path)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("store %s: encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		if tok := c.session.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		if uid := c.session.UserID(); uid != "" {
			req.Header.Set("X-User-Id", uid)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		e := &Error{Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			e.Err = ErrUnauthorized
			if c.onUnauthorized != nil {
				c.onUnauthorized(context.WithoutCancel(ctx))
			}
		case http.StatusNotFound:
			e.Err = ErrNotFound
		case http.StatusConflict:
			e.Err = ErrConflict
		}
		return e
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	var src io.Reader = resp.Body
	if c.maxBody > 0 {
		src = io.LimitReader(resp.Body, c.maxBody)
	}
	if err := json.NewDecoder(src).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.obs != nil {
		c.obs.ObserveUpstream("store", op, status, time.Since(start))
	}
}

// opPath collapses ids so metric labels stay bounded: "/chats/abc" -> "/chats/:id".
func opPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) > 1 {
		return "/" + parts[0] + "/:id"
	}
	return "/" + parts[0]
}

func errorMessage(raw []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(raw, &env) == nil {
		for _, s := range []string{env.Message, env.Error, env.Detail} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
