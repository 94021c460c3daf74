// Package services holds the gateways that sit between the HTTP layer and the
// two upstream services: authentication, chats, the course catalog and the
// student's saved courses. This file centralizes the service-level error
// values so handlers can map them to HTTP results consistently.
package services

import (
	"errors"
	"fmt"
)

// Validation errors. They are returned before any upstream call.
var (
	ErrInvalidSignup  = errors.New("invalid signup")
	ErrInvalidLogin   = errors.New("username and password are required")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrInvalidRole    = errors.New("role must be user or assistant")
	ErrEmptyPrompt    = errors.New("prompt is empty")
	ErrInvalidFilter  = errors.New("invalid filter")
	ErrEmptyPatch     = errors.New("nothing to update")
	ErrInvalidCourse  = errors.New("course id is required")
	ErrInvalidChatRef = errors.New("chat id is required")
)

// Authentication errors.
var (
	// ErrNoUser is returned when an operation needs a signed-in user and there
	// is none. No upstream call has been made.
	ErrNoUser = errors.New("no authenticated user")

	// ErrInvalidCredentials hides whether the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidToken is returned for a missing, malformed, expired or
	// superseded session token.
	ErrInvalidToken = errors.New("authentication required")
)

// Not-found errors.
var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrCourseNotFound = errors.New("course not found")
	ErrTrendsNotFound = errors.New("no trends found for this course")
)

// ValidationError names the offending field of a rejected request. It wraps
// one of the validation sentinels.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s %s", e.Err, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ExternalError is an upstream failure surfaced by a gateway. Status is the
// upstream HTTP status, or 0 when the request never completed.
type ExternalError struct {
	Service string
	Op      string
	Status  int
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }
