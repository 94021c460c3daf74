package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/course-advisor-backend/internal/auth"
	"github.com/tbourn/course-advisor-backend/internal/cache"
	"github.com/tbourn/course-advisor-backend/internal/clients/advisor"
	"github.com/tbourn/course-advisor-backend/internal/clients/store"
	"github.com/tbourn/course-advisor-backend/internal/config"
	"github.com/tbourn/course-advisor-backend/internal/credentials"
	httpapi "github.com/tbourn/course-advisor-backend/internal/http"
	"github.com/tbourn/course-advisor-backend/internal/observability"
	"github.com/tbourn/course-advisor-backend/internal/pending"
	"github.com/tbourn/course-advisor-backend/internal/repo"
	"github.com/tbourn/course-advisor-backend/internal/services"
	"github.com/tbourn/course-advisor-backend/internal/sysutil"
)

// @title          Course Advisor BFF API
// @version        1.0
// @description    Backend-for-frontend of the course advisor: chats with the assistant, the course catalog and saved courses.
// @BasePath       /api/v1
// @schemes        http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token returned by /auth/login, sent as "Bearer <token>".

const shutdownGrace = 30 * time.Second

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	version := sysutil.Version()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open sqlite failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	deps := wire(ctx, cfg, db)

	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, deps)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db, time.Hour)

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("store", cfg.Upstream.StoreBaseURL).
			Str("advisor", cfg.Upstream.AdvisorBaseURL).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownOTel(shCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server exited")
}

// wire builds the session, both collaborator clients and the gateways.
func wire(ctx context.Context, cfg config.Config, db *gorm.DB) httpapi.Deps {
	tracker := pending.New()
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer, tracker.Count)
	qc := cache.New(cfg.Upstream.CacheTTL, cache.WithObserver(metrics))

	creds := credentials.New(repo.NewClientStorage(db))
	if err := creds.CheckAuthStatus(ctx); err != nil {
		// A broken persisted session starts signed out.
		log.Warn().Err(err).Msg("restoring session failed")
	}

	st := store.New(cfg.Upstream.StoreBaseURL,
		store.WithSession(creds),
		store.WithTimeout(cfg.Upstream.Timeout),
		store.WithMaxResponseSize(cfg.Upstream.MaxResponseSize),
		store.WithObserver(metrics),
		store.OnUnauthorized(func(ctx context.Context) {
			if err := creds.ClearCredentials(ctx); err != nil {
				log.Warn().Err(err).Msg("clearing rejected credentials failed")
			}
			qc.Reset()
		}),
	)
	adv := advisor.New(cfg.Upstream.AdvisorBaseURL,
		advisor.WithTimeout(cfg.Upstream.Timeout),
		advisor.WithChatTimeout(cfg.Upstream.AITimeout),
		advisor.WithRetry(cfg.Upstream.RetryAttempts, 200*time.Millisecond),
		advisor.WithMaxResponseSize(cfg.Upstream.MaxResponseSize),
		advisor.WithObserver(metrics),
	)

	chats := services.NewChatGateway(st, adv, creds, qc, tracker)
	chats.AITimeout = cfg.Upstream.AITimeout

	mine := services.NewMyCoursesGateway(st, adv, creds, qc)
	mine.Concurrency = cfg.Upstream.DetailWorkers

	issuer := auth.NewIssuer(auth.Config{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.JWTTTL,
		Issuer: cfg.Auth.Issuer,
	})

	return httpapi.Deps{
		Auth:      services.NewAuthService(adv, st, creds, qc, issuer),
		Chats:     chats,
		Courses:   services.NewCourseGateway(adv, qc),
		MyCourses: mine,
		DB:        db,
	}
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("idempotency records purged")
			}
		}
	}
}
