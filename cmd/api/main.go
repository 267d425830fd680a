package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"lingxian-cart/internal/auth"
	"lingxian-cart/internal/config"
	"lingxian-cart/internal/db"
	"lingxian-cart/internal/httpserver"
	"lingxian-cart/internal/logger"
	"lingxian-cart/internal/metrics"
	cartrepo "lingxian-cart/internal/repository/cart"
	productrepo "lingxian-cart/internal/repository/product"
	"lingxian-cart/internal/seed"
	cartsvc "lingxian-cart/internal/service/cart"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).With(zap.String("app", "api"))
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	deps := httpserver.Deps{
		Tokens:      auth.NewService(cfg.JWT.Secret, cfg.JWT.TTL),
		Metrics:     metrics.NewRegistry(),
		CORSOrigins: cfg.CORSOrigins,
		DevLogin:    cfg.DevLogin,
	}

	if cfg.DBConnString != "" {
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			log.Fatal("connect to db", zap.Error(err))
		}
		defer pool.Close()
		deps.DB = pool
		deps.CartSvc = cartsvc.New(cartrepo.NewPostgres(pool, log), productrepo.NewPostgres(pool, log), log)
	} else {
		log.Warn("DB_DSN not set, using in-memory storage with demo catalog")
		catalog := productrepo.NewMemory()
		if err := seed.Apply(ctx, catalog, log); err != nil {
			log.Fatal("seed memory catalog", zap.Error(err))
		}
		deps.CartSvc = cartsvc.New(cartrepo.NewMemory(), catalog, log)
	}
	if cfg.DevLogin {
		log.Warn("development login enabled")
	}

	srv := httpserver.New(cfg.HTTPAddr, log, deps)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	} else {
		log.Info("server stopped")
	}
}
