package main

import (
	"context"

	"go.uber.org/zap"

	"lingxian-cart/internal/config"
	"lingxian-cart/internal/db"
	"lingxian-cart/internal/logger"
	"lingxian-cart/internal/migrate"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).With(zap.String("app", "migrate"))
	defer func() { _ = log.Sync() }()

	if cfg.DBConnString == "" {
		log.Fatal("DB_DSN is required")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool, log); err != nil {
		log.Fatal("apply migrations", zap.Error(err))
	}
	log.Info("migrations applied")
}
