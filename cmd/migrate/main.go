package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/flicky/go-checkout-api/internal/config"
	"github.com/flicky/go-checkout-api/internal/logger"
	"github.com/flicky/go-checkout-api/internal/migrate"
)

func main() {
	noChecks := flag.Bool("no-checks", false, "skip CHECK constraints")
	noIndexes := flag.Bool("no-indexes", false, "skip secondary indexes")
	noTriggers := flag.Bool("no-triggers", false, "skip updated_at triggers")
	timeout := flag.Duration("timeout", time.Minute, "overall migration timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		log.Fatal("connect to database", zap.Error(err))
	}
	defer pool.Close()

	opt := migrate.DefaultOptions()
	opt.CreateChecks = !*noChecks
	opt.CreateIndexes = !*noIndexes
	opt.CreateUpdatedAtTrigger = !*noTriggers

	if err := migrate.Run(ctx, pool, log, opt); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
}
