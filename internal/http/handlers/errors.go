// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are stable, lowercase snake_case strings that clients can branch on.
// writeError is the single place where gateway errors become HTTP results:
//
//	validation           → 400 bad_request
//	authentication       → 401 unauthorized
//	missing resource     → 404 not_found
//	record store clash   → 409 conflict
//	upstream failure     → 502 upstream_failed
//	upstream timeout     → 504 upstream_timeout
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "chat not found"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/course-advisor-backend/internal/clients/advisor"
	"github.com/tbourn/course-advisor-backend/internal/clients/store"
	"github.com/tbourn/course-advisor-backend/internal/http/middleware"
	"github.com/tbourn/course-advisor-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Upstream (record store or advisor service):
	ErrCodeUpstreamFailed  = "upstream_failed"
	ErrCodeUpstreamTimeout = "upstream_timeout"
)

var validationErrs = []error{
	services.ErrInvalidSignup,
	services.ErrInvalidLogin,
	services.ErrEmptyMessage,
	services.ErrInvalidRole,
	services.ErrEmptyPrompt,
	services.ErrInvalidFilter,
	services.ErrEmptyPatch,
	services.ErrInvalidCourse,
	services.ErrInvalidChatRef,
}

func isValidation(err error) bool {
	for _, v := range validationErrs {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// classify maps a gateway error onto an HTTP status, code and message.
func classify(c *gin.Context, err error) (int, string, string) {
	var ee *services.ExternalError
	switch {
	case isValidation(err):
		return http.StatusBadRequest, ErrCodeBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrInvalidCredentials.Error()
	case errors.Is(err, services.ErrNoUser),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, store.ErrUnauthorized):
		return http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required"
	case errors.Is(err, services.ErrChatNotFound),
		errors.Is(err, services.ErrCourseNotFound),
		errors.Is(err, services.ErrTrendsNotFound):
		return http.StatusNotFound, ErrCodeNotFound, err.Error()
	case errors.Is(err, store.ErrNotFound), errors.Is(err, advisor.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "resource not found"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, ErrCodeConflict, "record already exists"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeUpstreamTimeout, "upstream service timed out"
	case errors.As(err, &ee):
		middleware.LoggerFrom(c).Warn().
			Err(ee.Err).
			Str("service", ee.Service).
			Str("op", ee.Op).
			Int("upstream_status", ee.Status).
			Msg("upstream call failed")
		return http.StatusBadGateway, ErrCodeUpstreamFailed, ee.Service + " " + ee.Op + " failed"
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled error")
		return http.StatusInternalServerError, ErrCodeInternal, "internal server error"
	}
}

// writeError writes the error envelope for a gateway error.
func writeError(c *gin.Context, err error) {
	status, code, msg := classify(c, err)
	fail(c, status, code, msg)
}

// bindError rejects a malformed request body or query.
func bindError(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, msg)
}
