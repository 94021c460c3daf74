package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/course-advisor-backend/internal/auth"
)

// CtxKeyUserID is the Gin context key holding the authenticated user id.
const CtxKeyUserID = "userID"

// TokenVerifier checks a session token and returns its user id.
type TokenVerifier func(token string) (userID string, err error)

// RequireAuth rejects requests without a valid "Authorization: Bearer"
// session token with 401. On success the user id is stored under
// CtxKeyUserID and added to the request-scoped logger.
func RequireAuth(verify TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		uid, err := verify(tok)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Set(CtxKeyUserID, uid)

		l := LoggerFrom(c).With().Str("user_id", uid).Logger()
		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

