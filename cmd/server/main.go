package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"payrolld/internal/domain/audit"
	"payrolld/internal/domain/cutoff"
	"payrolld/internal/domain/notifications"
	"payrolld/internal/domain/posting"
	"payrolld/internal/domain/schedule"
	"payrolld/internal/platform/config"
	"payrolld/internal/platform/db"
	"payrolld/internal/platform/email"
	"payrolld/internal/platform/jobs"
	"payrolld/internal/platform/metrics"
	"payrolld/internal/platform/salary"
	"payrolld/internal/transport/http/api"
	audithandler "payrolld/internal/transport/http/handlers/audit"
	cutoffhandler "payrolld/internal/transport/http/handlers/cutoff"
	notificationshandler "payrolld/internal/transport/http/handlers/notifications"
	schedulehandler "payrolld/internal/transport/http/handlers/schedule"
	appmiddleware "payrolld/internal/transport/http/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}

	collector := metrics.New()

	notifStore := notifications.NewStore(pool)
	notifSvc := notifications.New(notifStore, email.New(cfg))
	taskMailer := notifications.NewTaskMailer(notifSvc)

	postingSvc := posting.NewService(posting.NewStore(pool), collector)
	directory := cutoff.NewDirectory(pool)
	cutoffSvc := cutoff.NewService(cutoff.NewStore(pool), postingSvc, directory, notifSvc, taskMailer)
	scheduleSvc := schedule.NewService(schedule.NewStore(pool))
	auditSvc := audit.New(pool)

	jobsSvc := jobs.New(pool, cfg, scheduleSvc, cutoffSvc, salary.New(cfg))
	jobsSvc.Start(ctx)

	router := chi.NewRouter()
	router.Use(appmiddleware.RequestID)
	router.Use(appmiddleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(appmiddleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(appmiddleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(appmiddleware.Identity(cfg.JWTSecret))
	router.Use(appmiddleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(appmiddleware.LedgerMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), appmiddleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(appmiddleware.RequireActor)

		schedulehandler.NewHandler(scheduleSvc, auditSvc, jobsSvc, cfg.PeriodGenerateCount).RegisterRoutes(r)
		cutoffhandler.NewHandler(cutoffSvc, jobsSvc, auditSvc).RegisterRoutes(r)
		notificationshandler.NewHandler(notifSvc).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc).RegisterRoutes(r)
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "err", err)
		}
	}()

	slog.Info("payrolld server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
