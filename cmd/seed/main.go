package main

import (
	"context"

	"go.uber.org/zap"

	"lingxian-cart/internal/config"
	"lingxian-cart/internal/db"
	"lingxian-cart/internal/logger"
	"lingxian-cart/internal/repository/product"
	"lingxian-cart/internal/seed"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).With(zap.String("app", "seed"))
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

	if err := seed.Apply(ctx, product.NewPostgres(pool, log), log); err != nil {
		log.Fatal("seed apply", zap.Error(err))
	}
}
