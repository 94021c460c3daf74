// Package advisor is the HTTP client for the course advisor service, which
// owns identity (login/signup), the AI chat endpoint and the course catalog.
//
// Idempotent reads are retried on transport errors and 5xx responses with
// exponential backoff. The chat call is never retried.
package advisor

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

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// Sentinel errors. *Error values wrap one of them when the status matches.
var (
	ErrInvalidCredentials = errors.New("advisor: invalid credentials")
	ErrRejected           = errors.New("advisor: request rejected")
	ErrNotFound           = errors.New("advisor: not found")
	ErrTooLarge           = errors.New("advisor: response too large")
)

// Error is a failed advisor call.
type Error struct {
	Op      string
	Status  int // 0 for transport failures
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("advisor %s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("advisor %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("advisor %s: status %d", e.Op, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Observer records upstream call latencies; it may be nil.
type Observer interface {
	ObserveUpstream(service, op string, status int, elapsed time.Duration)
}

// Identity is the profile returned by login and signup.
type Identity struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// SignupRequest is the registration payload.
type SignupRequest struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// ChatRequest is one question to the assistant.
type ChatRequest struct {
	UserID    string `json:"user_id"`
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// Client talks to the advisor service. Safe for concurrent use.
type Client struct {
	baseURL     string
	hc          *http.Client
	timeout     time.Duration
	chatTimeout time.Duration
	attempts    uint
	delay       time.Duration
	obs         Observer
	maxBody     int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithTimeout bounds every call except Chat.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithChatTimeout bounds Chat, which waits on the language model.
func WithChatTimeout(d time.Duration) Option { return func(c *Client) { c.chatTimeout = d } }

// WithRetry sets the attempt count and base backoff of idempotent reads.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.attempts = attempts
		c.delay = delay
	}
}

// WithObserver registers o for latency metrics.
func WithObserver(o Observer) Option { return func(c *Client) { c.obs = o } }

// WithMaxResponseSize caps response bodies; a larger body fails the call.
// Zero means unlimited.
func WithMaxResponseSize(n int64) Option { return func(c *Client) { c.maxBody = n } }

// New returns a client for the advisor service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		hc:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		attempts: 3,
		delay:    200 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Login verifies credentials. A 401 yields ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, userID, password string) (Identity, error) {
	var out Identity
	body := map[string]string{"user_id": userID, "password": password}
	err := c.send(ctx, c.timeout, http.MethodPost, "/login", body, func(raw []byte) error {
		return json.Unmarshal(raw, &out)
	})
	return out, err
}

// Signup registers a new account. A 400 or 409 (for example a taken id or
// email) yields ErrRejected with the service's message.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (Identity, error) {
	var out Identity
	err := c.send(ctx, c.timeout, http.MethodPost, "/signup", req, func(raw []byte) error {
		return json.Unmarshal(raw, &out)
	})
	return out, err
}

// Chat asks the assistant. The reply is classified by ParseReply and never
// fails to parse.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (domain.AIReply, error) {
	var reply domain.AIReply
	err := c.send(ctx, c.chatTimeout, http.MethodPost, "/chat", req, func(raw []byte) error {
		reply = ParseReply(raw)
		return nil
	})
	return reply, err
}

// Catalog returns the raw catalog payload; see catalog.Normalize.
func (c *Client) Catalog(ctx context.Context) (json.RawMessage, error) {
	return c.getRetry(ctx, "/course_catalog")
}

// CourseDetail loads one course.
func (c *Client) CourseDetail(ctx context.Context, courseID string) (domain.Course, error) {
	var out domain.Course
	raw, err := c.getRetry(ctx, "/course_detail/"+url.PathEscape(courseID))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &Error{Op: "GET /course_detail/:id", Status: http.StatusOK, Err: fmt.Errorf("decode: %w", err)}
	}
	return out, nil
}

// Trends loads the yearly statistics of a course. The service answers with
// either a bare list of years or a wrapped object; both are accepted.
func (c *Client) Trends(ctx context.Context, courseID string) (domain.CourseTrends, error) {
	out := domain.CourseTrends{CourseID: courseID}
	raw, err := c.getRetry(ctx, "/trends/"+url.PathEscape(courseID))
	if err != nil {
		return out, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &out.Trends)
	} else {
		err = json.Unmarshal(raw, &out)
		if out.CourseID == "" {
			out.CourseID = courseID
		}
	}
	if err != nil {
		return out, &Error{Op: "GET /trends/:id", Status: http.StatusOK, Err: fmt.Errorf("decode: %w", err)}
	}
	return out, nil
}

func (c *Client) getRetry(ctx context.Context, path string) (json.RawMessage, error) {
	return retry.DoWithData(
		func() (json.RawMessage, error) {
			var raw json.RawMessage
			err := c.send(ctx, c.timeout, http.MethodGet, path, nil, func(b []byte) error {
				raw = append(json.RawMessage(nil), b...)
				return nil
			})
			return raw, err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
}

// retryable reports whether err is a transport failure or a 5xx.
func retryable(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	if errors.Is(ae.Err, context.Canceled) {
		return false
	}
	return ae.Status == 0 || ae.Status >= 500
}

func (c *Client) send(ctx context.Context, timeout time.Duration, method, path string, in any, decode func([]byte) error) error {
	op := method + " " + opPath(path)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("advisor %s: encode: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, start)

	var src io.Reader = resp.Body
	if c.maxBody > 0 {
		src = io.LimitReader(resp.Body, c.maxBody+1)
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if c.maxBody > 0 && int64(len(raw)) > c.maxBody {
		return &Error{Op: op, Status: resp.StatusCode, Err: ErrTooLarge}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			e.Err = ErrInvalidCredentials
		case resp.StatusCode == http.StatusNotFound:
			e.Err = ErrNotFound
		case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusUnprocessableEntity:
			e.Err = ErrRejected
		}
		return e
	}
	if err := decode(raw); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.obs != nil {
		c.obs.ObserveUpstream("advisor", op, status, time.Since(start))
	}
}

func opPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) > 1 {
		return "/" + parts[0] + "/:id"
	}
	return "/" + parts[0]
}

// errorMessage extracts a human-readable message; FastAPI-style services put
// it under "detail".
func errorMessage(raw []byte) string {
	var env struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil {
		if s, ok := env.Detail.(string); ok && s != "" {
			return s
		}
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
