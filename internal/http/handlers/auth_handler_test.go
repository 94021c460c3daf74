package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/course-advisor-backend/internal/domain"
	"github.com/tbourn/course-advisor-backend/internal/services"
)

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/auth/login", map[string]string{"username": "jdoe", "password": "secret1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	res := decode[services.AuthResult](t, w)
	if res.User.ID != "jdoe" || res.Token != "tok" {
		t.Fatalf("unexpected result: %+v", res)
	}

	expectError(t, f.do(http.MethodPost, "/auth/login", map[string]string{"username": "jdoe"}), 400, ErrCodeBadRequest)
	expectError(t, f.do(http.MethodPost, "/auth/login", "{"), 400, ErrCodeBadRequest)

	f.auth.login = func(services.LoginRequest) (services.AuthResult, error) {
		return services.AuthResult{}, services.ErrInvalidCredentials
	}
	w = f.do(http.MethodPost, "/auth/login", map[string]string{"username": "jdoe", "password": "nope"})
	expectError(t, w, 401, ErrCodeUnauthorized)
	if er := decode[ErrorResponse](t, w); er.Message != "invalid username or password" {
		t.Fatalf("message = %q", er.Message)
	}
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	form := map[string]string{
		"username": "jdoe", "password": "secret1", "confirmPassword": "secret1",
		"firstName": "Jane", "lastName": "Doe", "email": "jane@uni.edu",
	}

	var got services.SignupRequest
	f.auth.signup = func(r services.SignupRequest) (services.AuthResult, error) {
		got = r
		return services.AuthResult{User: domain.User{ID: r.Username}}, nil
	}
	if w := f.do(http.MethodPost, "/auth/signup", form); w.Code != http.StatusCreated {
		t.Fatalf("status=%d", w.Code)
	}
	if got.FirstName != "Jane" || got.ConfirmPassword != "secret1" || got.Email != "jane@uni.edu" {
		t.Fatalf("form not bound: %+v", got)
	}

	f.auth.signup = func(services.SignupRequest) (services.AuthResult, error) {
		return services.AuthResult{}, &services.ValidationError{Field: "email", Reason: "is not a valid address", Err: services.ErrInvalidSignup}
	}
	w := f.do(http.MethodPost, "/auth/signup", form)
	expectError(t, w, 400, ErrCodeBadRequest)
	if er := decode[ErrorResponse](t, w); er.Message != "invalid signup: email is not a valid address" {
		t.Fatalf("message = %q", er.Message)
	}
}

func TestLogoutAndStatus(t *testing.T) {
	f := newFixture(t)
	loggedOut := false
	f.auth.logout = func() error { loggedOut = true; return nil }

	if w := f.do(http.MethodPost, "/auth/logout", nil); w.Code != http.StatusNoContent || !loggedOut {
		t.Fatalf("logout: %d %v", w.Code, loggedOut)
	}

	w := f.do(http.MethodGet, "/auth/status", nil)
	if st := decode[services.AuthStatus](t, w); st.Authenticated || st.User != nil {
		t.Fatalf("status: %+v", st)
	}

	u := domain.User{ID: "jdoe"}
	f.auth.status = func() (services.AuthStatus, error) { return services.AuthStatus{Authenticated: true, User: &u}, nil }
	w = f.do(http.MethodGet, "/auth/status", nil)
	if st := decode[services.AuthStatus](t, w); !st.Authenticated || st.User.ID != "jdoe" {
		t.Fatalf("status: %+v", st)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPatch, "/auth/profile", map[string]string{"firstName": "Janet"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if u := decode[domain.User](t, w); u.FirstName != "Janet" {
		t.Fatalf("user: %+v", u)
	}

	f.auth.profile = func(domain.UserPatch) (domain.User, error) { return domain.User{}, services.ErrEmptyPatch }
	expectError(t, f.do(http.MethodPatch, "/auth/profile", map[string]string{}), 400, ErrCodeBadRequest)

	f.auth.profile = func(domain.UserPatch) (domain.User, error) { return domain.User{}, services.ErrNoUser }
	expectError(t, f.do(http.MethodPatch, "/auth/profile", map[string]string{"email": "a@b.co"}), 401, ErrCodeUnauthorized)
}
