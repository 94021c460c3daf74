package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verify := func(tok string) (string, error) {
		if tok == "good" {
			return "u1", nil
		}
		return "", errors.New("bad token")
	}

	r := gin.New()
	r.Use(RequestID(), RequireAuth(verify))
	r.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Basic abc", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer good", http.StatusOK},
		{"bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)
		if w.Code != tc.status {
			t.Fatalf("%q: status %d, want %d", tc.header, w.Code, tc.status)
		}
		if tc.status == http.StatusOK && w.Body.String() != "u1" {
			t.Fatalf("user id not propagated: %q", w.Body.String())
		}
	}
}

func TestUserID_Anonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if UserID(c) != "" {
		t.Fatal("want empty user id")
	}
	c.Set(CtxKeyUserID, 42)
	if UserID(c) != "" {
		t.Fatal("non-string value must be ignored")
	}
}
