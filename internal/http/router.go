// Package httpapi wires the HTTP transport (Gin) to the gateways, middleware
// and route handlers of the course advisor BFF. It centralizes cross-cutting
// concerns: tracing, correlation IDs, logging with redaction, panic recovery,
// compression, metrics, CORS, security headers, authentication, idempotency
// and rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/course-advisor-backend/docs"
	"github.com/tbourn/course-advisor-backend/internal/config"
	"github.com/tbourn/course-advisor-backend/internal/http/handlers"
	"github.com/tbourn/course-advisor-backend/internal/http/middleware"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// AuthService is the handler contract plus token verification for
// protected routes.
type AuthService interface {
	handlers.AuthService
	VerifyToken(token string) (userID string, err error)
}

// Deps are the collaborators RegisterRoutes mounts.
type Deps struct {
	Auth      AuthService
	Chats     handlers.ChatService
	Courses   handlers.CourseService
	MyCourses handlers.MyCoursesService
	// DB holds the idempotency records.
	DB *gorm.DB
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID and request-scoped logger
//  3. RedactingLogger: access logs with credentials masked
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. Global rate limiter (per user/IP)
//  8. CORS and security headers
//
// Protected routes then add authentication, idempotency on message appends
// and a stricter limiter on assistant calls.
func RegisterRoutes(r *gin.Engine, cfg config.Config, d Deps) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.NewRateLimiter("global", cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler())

	useCORS(r, cfg.CORS.AllowedOrigins)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(d.Auth, d.Chats, d.Courses, d.MyCourses)

	idem := middleware.Idempotency(NewIdempotencyStore(d.DB), middleware.IdempotencyOptions{
		MaxLen: 200,
		TTL:    cfg.IdempotencyTTL,
	})
	aiLimit := middleware.NewRateLimiter("ai", cfg.AIRateRPS, cfg.AIRateBurst, middleware.KeyByUserOrIP()).Handler()

	api := groupWithPrefix(r, cfg.APIBasePath)

	public := api.Group("/auth", noStore)
	{
		public.POST("/login", h.Login)
		public.POST("/signup", h.Signup)
		public.GET("/status", h.AuthStatus)
	}

	priv := api.Group("", middleware.RequireAuth(d.Auth.VerifyToken))
	{
		priv.POST("/auth/logout", noStore, h.Logout)
		priv.PATCH("/auth/profile", noStore, h.UpdateProfile)

		// Chats
		priv.GET("/chats", h.ListChats)
		priv.POST("/chats", h.CreateChat)
		priv.GET("/chats/:id", h.GetChat)
		priv.PATCH("/chats/:id", h.UpdateChat)
		priv.GET("/chats/:id/pending", h.GetPending)

		// Messages and assistant
		priv.GET("/chats/:id/messages", h.ListMessages)
		priv.POST("/chats/:id/exchange", idem, aiLimit, h.Exchange)
		priv.POST("/messages", idem, h.AddMessage)
		priv.POST("/ai/chat", aiLimit, h.AIChat)

		// Catalog
		priv.GET("/courses", h.ListCourses)
		priv.GET("/courses/search", h.SearchCourses)
		priv.GET("/courses/filters", h.FilterOptions)
		priv.GET("/courses/:id", h.GetCourse)
		priv.GET("/courses/:id/trends", h.GetCourseTrends)

		// Saved courses
		priv.GET("/my-courses", h.ListMyCourses)
		priv.POST("/my-courses", h.AddMyCourse)
		priv.DELETE("/my-courses/:id", h.RemoveMyCourse)
	}
}

// useCORS applies the CORS posture: any origin when no allowlist is
// configured, otherwise only the listed origins are echoed back.
func useCORS(r *gin.Engine, origins []string) {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", middleware.HeaderIdempotencyReplayed, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		// ACAO: * even without an Origin header so plain health checks see it.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		base.AllowAllOrigins = true
		r.Use(cors.New(base))
		return
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	base.AllowOrigins = origins
	r.Use(cors.New(base))
}

// noStore marks credential-bearing responses as uncacheable.
func noStore(c *gin.Context) {
	middleware.NoStore(c)
	c.Next()
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
