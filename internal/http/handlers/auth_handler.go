// Auth HTTP handlers.
//
//   - POST  /auth/login     (public)
//   - POST  /auth/signup    (public)
//   - GET   /auth/status    (public)
//   - POST  /auth/logout
//   - PATCH /auth/profile
//
// The BFF holds one student session at a time. Login and signup return a
// session token that every protected route expects as a Bearer token.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/course-advisor-backend/internal/domain"
	"github.com/tbourn/course-advisor-backend/internal/services"
)

// Login godoc
// @ID          login
// @Summary     Sign in
// @Description Authenticates against the advisor service, syncs the local user record and starts the session.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  services.LoginRequest  true  "Credentials"
//
// @Success     200  {object}  services.AuthResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid username or password"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream failed"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, services.ErrInvalidLogin.Error())
		return
	}
	res, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Signup godoc
// @ID          signup
// @Summary     Register
// @Description Validates the form, registers with the advisor service, creates the local user record and starts the session.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  services.SignupRequest  true  "Registration form"
//
// @Success     201  {object}  services.AuthResult
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid form or rejected by the advisor service"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream failed"
// @Router      /auth/signup [post]
func (h *Handlers) Signup(c *gin.Context) {
	var req services.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "invalid JSON body")
		return
	}
	res, err := h.authSvc.Signup(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, res)
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Description Ends the session and drops every cached query.
// @Tags        Auth
// @Security    BearerAuth
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.authSvc.Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}

// AuthStatus godoc
// @ID          authStatus
// @Summary     Session status
// @Description Reloads the persisted session and reports whether a student is signed in.
// @Tags        Auth
// @Produce     json
//
// @Success     200  {object}  services.AuthStatus
// @Failure     500  {object}  handlers.ErrorResponse  "Session storage failed"
// @Router      /auth/status [get]
func (h *Handlers) AuthStatus(c *gin.Context) {
	st, err := h.authSvc.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update profile
// @Description Changes the signed-in student's username, email or name. Empty fields are left untouched.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  domain.UserPatch  true  "Fields to change"
//
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Record store failed"
// @Router      /auth/profile [patch]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var patch domain.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, "invalid JSON body")
		return
	}
	u, err := h.authSvc.UpdateProfile(c.Request.Context(), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
