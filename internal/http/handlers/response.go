// Package handlers provides the HTTP handlers of the course advisor BFF.
//
// This file holds the response helpers shared by every endpoint. Failures
// always use the ErrorResponse envelope with a stable code:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "chat not found"
//	}
//
// Successes return the resource itself, never wrapped:
//
//	HTTP/1.1 201 Created
//	{ "id": "7c1e", "userId": "jdoe", "title": "New chat", "created_at": "2025-01-01T10:00:00Z" }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/course-advisor-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID, to find the matching server logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants).
	Code string `json:"code" example:"not_found"`
	// Human-readable message, safe to show to students.
	Message string `json:"message" example:"chat not found"`
}

// fail aborts the request with the error envelope. Upstream failures are
// logged as warnings since the BFF only relays them; other 5xx are errors.
// upstream_failed is skipped here: classify already logged it with its cause.
func fail(c *gin.Context, status int, code, msg string) {
	switch {
	case code == ErrCodeUpstreamFailed:
	case code == ErrCodeUpstreamTimeout:
		middleware.LoggerFrom(c).Warn().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("upstream error")
	case status >= http.StatusInternalServerError:
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail(), used by the router for NoRoute and
// NoMethod responses.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// created writes a 201 for a new resource.
func created(c *gin.Context, body any) {
	c.JSON(http.StatusCreated, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
