package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(now time.Time) *Issuer {
	i := NewIssuer(Config{Secret: "test-secret", TTL: time.Hour, Issuer: "course-advisor"})
	i.now = func() time.Time { return now }
	return i
}

func TestIssueAndValidate(t *testing.T) {
	now := time.Now()
	i := newTestIssuer(now)

	tok, exp, err := i.Issue("u1", "a@b.co")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := i.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "u1" || claims.Subject != "u1" || claims.Email != "a@b.co" || claims.ID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidate_Expired(t *testing.T) {
	now := time.Now()
	i := newTestIssuer(now)
	tok, _, _ := i.Issue("u1", "")

	i.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := i.Validate(tok); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidate_WrongSecretOrGarbage(t *testing.T) {
	now := time.Now()
	tok, _, _ := newTestIssuer(now).Issue("u1", "")

	other := NewIssuer(Config{Secret: "other", TTL: time.Hour, Issuer: "course-advisor"})
	if _, err := other.Validate(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := other.Validate("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
	if _, err := other.Validate(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty, got %v", err)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
		err  bool
	}{
		"bearer":      {"Bearer abc", "abc", false},
		"lower":       {"bearer  abc ", "abc", false},
		"missing":     {"", "", true},
		"wrong":       {"Basic abc", "", true},
		"empty token": {"Bearer   ", "", true},
	}
	for name, tc := range cases {
		got, err := ExtractBearerToken(tc.in)
		if (err != nil) != tc.err || got != tc.want {
			t.Fatalf("%s: got (%q, %v)", name, got, err)
		}
	}
}
