package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/pix-credits/internal/api"
	"github.com/baharkarakas/pix-credits/internal/api/handlers"
	"github.com/baharkarakas/pix-credits/internal/auth"
	"github.com/baharkarakas/pix-credits/internal/config"
	"github.com/baharkarakas/pix-credits/internal/db"
	"github.com/baharkarakas/pix-credits/internal/gateway"
	"github.com/baharkarakas/pix-credits/internal/logger"
	"github.com/baharkarakas/pix-credits/internal/metrics"
	"github.com/baharkarakas/pix-credits/internal/middleware"
	"github.com/baharkarakas/pix-credits/internal/repository/postgres"
	"github.com/baharkarakas/pix-credits/internal/services"
	"github.com/baharkarakas/pix-credits/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	if cfg.GatewayAccessToken == "" {
		log.Warn("GATEWAY_ACCESS_TOKEN is empty; gateway calls will be rejected upstream")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAccessToken)
	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, 24*time.Hour)

	userSvc := services.NewUserService(repos.Users, tm)
	balanceSvc := services.NewBalanceService(repos.Balances)
	intentSvc := services.NewIntentService(gw, repos.Ledger, repos.Users, repos.AuditLogs, cfg.WebhookBaseURL)
	reconciler := services.NewReconcilerService(gw, repos.Ledger, repos.Balances, repos.AuditLogs, wp)

	metrics.Init()
	r := api.NewRouter(api.Deps{
		Cfg:        cfg,
		Auth:       middleware.NewAuthMiddleware(tm),
		UserSvc:    userSvc,
		BalanceSvc: balanceSvc,
		Payments:   handlers.NewPaymentsHandler(intentSvc, reconciler, gw),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
