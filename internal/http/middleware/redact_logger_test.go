package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactor_Query(t *testing.T) {
	red := newRedactor(RedactOptions{MaskParams: []string{"secret"}})
	got := red.query("password=hunter2&q=jane@uni.edu&secret=x&courseId=CSCI")
	for _, leak := range []string{"hunter2", "jane@uni.edu", "secret=x"} {
		if strings.Contains(got, leak) {
			t.Fatalf("query leaked %q: %s", leak, got)
		}
	}
	if !strings.Contains(got, "courseId=CSCI") {
		t.Fatalf("harmless param lost: %s", got)
	}
}

func TestRedactor_Text(t *testing.T) {
	red := newRedactor(RedactOptions{})
	in := "chat 141add05-4415-4938-b5a1-17e0d3171aff by jane@uni.edu"
	got := red.text(in)
	if strings.Contains(got, "141add05") || strings.Contains(got, "jane@") {
		t.Fatalf("not redacted: %s", got)
	}
	if red.text("") != "" {
		t.Fatal("empty input must stay empty")
	}
}

func TestRedactingLogger_MasksHeadersAndLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	req := httptest.NewRequest(http.MethodGet, "/ok?token=abc", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("X-Api-Key", "k-123")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	out := buf.String()
	for _, leak := range []string{"secret-token", "k-123", "token=abc"} {
		if strings.Contains(out, leak) {
			t.Fatalf("log leaked %q: %s", leak, out)
		}
	}
	lines := logLines(t, buf)
	if len(lines) != 3 {
		t.Fatalf("want 3 access logs, got %d", len(lines))
	}
	want := []string{"info", "warn", "error"}
	for i, l := range lines {
		if l["level"] != want[i] {
			t.Fatalf("line %d level = %v, want %s", i, l["level"], want[i])
		}
		if l["message"] != "http_request" {
			t.Fatalf("line %d message = %v", i, l["message"])
		}
	}
}
