// Package services – AuthService
//
// AuthService signs students in against the advisor service (the identity
// authority) and keeps a shadow profile on the record store. Login and signup
// are two explicit steps: authenticate externally, then upsert locally. On
// conflict the external profile wins for first name, last name and email;
// the local record keeps its id, username and creation time.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/course-advisor-backend/internal/auth"
	"github.com/tbourn/course-advisor-backend/internal/cache"
	"github.com/tbourn/course-advisor-backend/internal/clients/advisor"
	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// MinPasswordLen is the shortest password accepted at signup.
const MinPasswordLen = 6

// CredentialStore is the session state AuthService manages.
type CredentialStore interface {
	SetCredentials(ctx context.Context, user domain.User, token string) error
	ClearCredentials(ctx context.Context) error
	CheckAuthStatus(ctx context.Context) error
	UpdateUser(ctx context.Context, patch domain.UserPatch) (*domain.User, error)
	User() *domain.User
	Token() string
	IsAuthenticated() bool
}

// LoginRequest carries sign-in credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignupRequest carries a registration form.
type SignupRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
}

// AuthResult is returned by Login and Signup.
type AuthResult struct {
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// AuthStatus is the current session state.
type AuthStatus struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
}

// AuthService implements sign-in, sign-up, sign-out and profile updates.
type AuthService struct {
	Identity IdentityProvider
	Users    UserStore
	Creds    CredentialStore
	Cache    *cache.Cache
	Tokens   *auth.Issuer

	Now func() time.Time
}

// NewAuthService wires an AuthService.
func NewAuthService(idp IdentityProvider, users UserStore, creds CredentialStore, c *cache.Cache, tokens *auth.Issuer) *AuthService {
	return &AuthService{Identity: idp, Users: users, Creds: creds, Cache: c, Tokens: tokens, Now: time.Now}
}

func (s *AuthService) tracer() trace.Tracer { return otel.Tracer("services/AuthService") }

// Login authenticates username/password with the advisor service, upserts the
// local profile and starts a session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (AuthResult, error) {
	ctx, span := s.tracer().Start(ctx, "Login")
	defer span.End()

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return AuthResult{}, ErrInvalidLogin
	}

	id, err := s.Identity.Login(ctx, username, req.Password)
	if err != nil {
		if errors.Is(err, advisor.ErrInvalidCredentials) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, external("login", err)
	}
	span.SetAttributes(attribute.String("user.id", id.UserID))
	return s.startSession(ctx, username, id)
}

// Signup validates the form, registers with the advisor service, creates the
// local profile and starts a session.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (AuthResult, error) {
	ctx, span := s.tracer().Start(ctx, "Signup")
	defer span.End()

	req, err := validateSignup(req)
	if err != nil {
		return AuthResult{}, err
	}

	id, err := s.Identity.Signup(ctx, advisor.SignupRequest{
		UserID:    req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, advisor.ErrRejected) {
			var ae *advisor.Error
			reason := "was rejected"
			if errors.As(err, &ae) && ae.Message != "" {
				reason = ae.Message
			}
			return AuthResult{}, &ValidationError{Field: "username", Reason: reason, Err: ErrInvalidSignup}
		}
		return AuthResult{}, external("signup", err)
	}
	return s.startSession(ctx, req.Username, id)
}

func (s *AuthService) startSession(ctx context.Context, username string, id advisor.Identity) (AuthResult, error) {
	if id.UserID == "" {
		id.UserID = username
	}
	user, err := s.upsertLocal(ctx, username, id)
	if err != nil {
		return AuthResult{}, err
	}
	token, exp, err := s.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		return AuthResult{}, err
	}
	// A new session must not see the previous user's cached queries.
	s.Cache.Reset()
	if err := s.Creds.SetCredentials(ctx, user, token); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user.Public(), Token: token, ExpiresAt: exp}, nil
}

// upsertLocal creates the shadow profile or reconciles it with the external
// one.
func (s *AuthService) upsertLocal(ctx context.Context, username string, id advisor.Identity) (domain.User, error) {
	ext := domain.User{
		ID:        id.UserID,
		Username:  username,
		Email:     id.Email,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		CreatedAt: s.Now().UTC(),
	}

	found, err := s.Users.FindUsers(ctx, id.UserID)
	if err != nil {
		return domain.User{}, external("find user", err)
	}
	if len(found) == 0 {
		created, err := s.Users.CreateUser(ctx, ext)
		if err != nil {
			return domain.User{}, external("create user", err)
		}
		if created.ID == "" {
			created = ext
		}
		return created.Public(), nil
	}

	local := found[0]
	patch := domain.UserPatch{}
	if ext.Email != "" && ext.Email != local.Email {
		patch.Email = ext.Email
	}
	if ext.FirstName != "" && ext.FirstName != local.FirstName {
		patch.FirstName = ext.FirstName
	}
	if ext.LastName != "" && ext.LastName != local.LastName {
		patch.LastName = ext.LastName
	}
	if local.Username == "" {
		patch.Username = username
	}
	if patch.Empty() {
		return local.Public(), nil
	}
	merged := patch.Apply(local)
	if _, err := s.Users.PatchUser(ctx, local.ID, patch); err != nil {
		// The external profile is authoritative; a stale shadow copy does not
		// block sign-in.
		log.Ctx(ctx).Warn().Err(err).Str("user_id", local.ID).Msg("failed to reconcile local profile")
	}
	return merged.Public(), nil
}

// Logout ends the session and drops every cached query.
func (s *AuthService) Logout(ctx context.Context) error {
	s.Cache.Reset()
	return s.Creds.ClearCredentials(ctx)
}

// Status reloads the persisted session and reports it.
func (s *AuthService) Status(ctx context.Context) (AuthStatus, error) {
	if err := s.Creds.CheckAuthStatus(ctx); err != nil {
		return AuthStatus{}, err
	}
	if !s.Creds.IsAuthenticated() {
		return AuthStatus{}, nil
	}
	u := s.Creds.User()
	if _, err := s.Tokens.Validate(s.Creds.Token()); err != nil {
		return AuthStatus{}, nil
	}
	pub := u.Public()
	return AuthStatus{Authenticated: true, User: &pub}, nil
}

// UpdateProfile changes the signed-in user's profile on the record store and
// in the session.
func (s *AuthService) UpdateProfile(ctx context.Context, patch domain.UserPatch) (domain.User, error) {
	ctx, span := s.tracer().Start(ctx, "UpdateProfile")
	defer span.End()

	u := s.Creds.User()
	if u == nil {
		return domain.User{}, ErrNoUser
	}
	patch.Email = normalizeEmail(patch.Email)
	patch.Username = strings.TrimSpace(patch.Username)
	patch.FirstName = strings.TrimSpace(patch.FirstName)
	patch.LastName = strings.TrimSpace(patch.LastName)
	if patch.Empty() {
		return domain.User{}, ErrEmptyPatch
	}
	if patch.Email != "" && !validEmail(patch.Email) {
		return domain.User{}, &ValidationError{Field: "email", Reason: "is not a valid address", Err: ErrInvalidSignup}
	}

	if _, err := s.Users.PatchUser(ctx, u.ID, patch); err != nil {
		return domain.User{}, external("update profile", err)
	}
	updated, err := s.Creds.UpdateUser(ctx, patch)
	if err != nil {
		return domain.User{}, err
	}
	s.Cache.Invalidate(cache.T(cache.TypeProfile))
	if updated == nil {
		return domain.User{}, ErrNoUser
	}
	return updated.Public(), nil
}

// VerifyToken checks that token is valid and is the current session's token.
// It returns the session user's id.
func (s *AuthService) VerifyToken(token string) (string, error) {
	claims, err := s.Tokens.Validate(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	u := s.Creds.User()
	if u == nil || s.Creds.Token() != token || u.ID != claims.UserID {
		return "", ErrInvalidToken
	}
	return u.ID, nil
}

func validateSignup(req SignupRequest) (SignupRequest, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = normalizeEmail(req.Email)

	required := []struct{ field, val string }{
		{"username", req.Username},
		{"password", req.Password},
		{"firstName", req.FirstName},
		{"lastName", req.LastName},
		{"email", req.Email},
	}
	for _, r := range required {
		if r.val == "" {
			return req, &ValidationError{Field: r.field, Reason: "is required", Err: ErrInvalidSignup}
		}
	}
	if !validEmail(req.Email) {
		return req, &ValidationError{Field: "email", Reason: "is not a valid address", Err: ErrInvalidSignup}
	}
	if len([]rune(req.Password)) < MinPasswordLen {
		return req, &ValidationError{Field: "password", Reason: "must be at least 6 characters", Err: ErrInvalidSignup}
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return req, &ValidationError{Field: "confirmPassword", Reason: "does not match", Err: ErrInvalidSignup}
	}
	return req, nil
}

func normalizeEmail(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// validEmail accepts a bare address such as "a@b.co".
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}
