// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, upstream services, session tokens, rate
// limiting, and observability.
package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "course-advisor-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// UpstreamConfig locates the record store and the advisor service.
type UpstreamConfig struct {
	StoreBaseURL    string        // STORE_BASE_URL (json-server)
	AdvisorBaseURL  string        // ADVISOR_BASE_URL
	Timeout         time.Duration // EXTERNAL_TIMEOUT per non-AI request
	AITimeout       time.Duration // AI_TIMEOUT for /chat
	RetryAttempts   uint          // RETRY_ATTEMPTS for idempotent GETs (1 = no retry)
	DetailWorkers   int           // DETAIL_CONCURRENCY for the my-courses join
	CacheTTL        time.Duration // CACHE_TTL of gateway queries
	MaxResponseSize int64         // UPSTREAM_MAX_BYTES per response body
}

// AuthConfig configures the session tokens minted at login.
type AuthConfig struct {
	JWTSecret string        // JWT_SECRET (HS256)
	JWTTTL    time.Duration // JWT_TTL
	Issuer    string        // JWT_ISSUER
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath   string // SQLite path (session storage, idempotency records)
	Upstream UpstreamConfig
	Auth     AuthConfig

	// Rate limiting
	RateRPS     float64 // tokens per second (>= 0)
	RateBurst   int     // bucket size (>= 1)
	AIRateRPS   float64 // assistant calls per second per user
	AIRateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "advisor.db"),
		Upstream: UpstreamConfig{
			StoreBaseURL:    strings.TrimRight(getenv("STORE_BASE_URL", "http://localhost:3001"), "/"),
			AdvisorBaseURL:  strings.TrimRight(getenv("ADVISOR_BASE_URL", "http://localhost:8000"), "/"),
			Timeout:         getdur("EXTERNAL_TIMEOUT", 10*time.Second),
			AITimeout:       getdur("AI_TIMEOUT", 60*time.Second),
			RetryAttempts:   uint(getint("RETRY_ATTEMPTS", 3)),
			DetailWorkers:   getint("DETAIL_CONCURRENCY", 6),
			CacheTTL:        getdur("CACHE_TTL", 5*time.Minute),
			MaxResponseSize: int64(getint("UPSTREAM_MAX_BYTES", 32<<20)),
		},
		Auth: AuthConfig{
			JWTSecret: getenv("JWT_SECRET", ""),
			JWTTTL:    getdur("JWT_TTL", 24*time.Hour),
			Issuer:    getenv("JWT_ISSUER", "course-advisor-backend"),
		},

		// Rate limiting
		RateRPS:     getfloat("RATE_RPS", 5.0),
		RateBurst:   getint("RATE_BURST", 10),
		AIRateRPS:   getfloat("RATE_AI_RPS", 0.5),
		AIRateBurst: getint("RATE_AI_BURST", 3),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "course-advisor-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if !validBaseURL(cfg.Upstream.StoreBaseURL) {
		return cfg, errors.New("STORE_BASE_URL must be an absolute http(s) URL")
	}
	if !validBaseURL(cfg.Upstream.AdvisorBaseURL) {
		return cfg, errors.New("ADVISOR_BASE_URL must be an absolute http(s) URL")
	}
	if cfg.Upstream.Timeout <= 0 || cfg.Upstream.AITimeout <= 0 {
		return cfg, errors.New("EXTERNAL_TIMEOUT and AI_TIMEOUT must be positive durations")
	}
	if cfg.Upstream.RetryAttempts < 1 {
		return cfg, errors.New("RETRY_ATTEMPTS must be >= 1")
	}
	if cfg.Upstream.DetailWorkers < 1 {
		return cfg, errors.New("DETAIL_CONCURRENCY must be >= 1")
	}
	if cfg.Upstream.CacheTTL < 0 {
		return cfg, errors.New("CACHE_TTL must be >= 0")
	}
	if cfg.Upstream.MaxResponseSize <= 0 {
		return cfg, errors.New("UPSTREAM_MAX_BYTES must be > 0")
	}
	if len(cfg.Auth.JWTSecret) < 16 {
		return cfg, errors.New("JWT_SECRET must be at least 16 characters")
	}
	if cfg.Auth.JWTTTL <= 0 {
		return cfg, errors.New("JWT_TTL must be > 0")
	}
	if cfg.RateRPS < 0 || cfg.AIRateRPS < 0 {
		return cfg, errors.New("RATE_RPS and RATE_AI_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 || cfg.AIRateBurst < 1 {
		return cfg, errors.New("RATE_BURST and RATE_AI_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// validBaseURL reports whether s is an absolute http or https URL.
func validBaseURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
