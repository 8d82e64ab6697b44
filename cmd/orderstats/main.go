package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"orderstats/internal/config"
	"orderstats/internal/database"
	"orderstats/internal/handler"
	"orderstats/internal/logger"
	"orderstats/internal/repository"
	"orderstats/internal/service"
	"orderstats/internal/worker"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("exiting", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(ctx, cfg.DatabaseURI, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect to DB: %w", err)
	}
	defer database.CloseDB(db, log)

	if err := database.InitSchema(ctx, db); err != nil {
		return fmt.Errorf("init DB schema: %w", err)
	}

	// Repositories
	userRepo := repository.NewUserRepo(db, log)
	orderRepo := repository.NewOrderRepo(db, log)
	statsRepo := repository.NewStatsRepo(db, log)

	// Services
	orderSvc := service.NewOrderService(repository.NewTxRunner(db), userRepo, orderRepo, cfg.Location, log)
	statsSvc := service.NewStatsService(userRepo, statsRepo, cfg.Location, log)

	// Worker
	dailyWorker := worker.NewDailyStatsWorker(statsSvc, cfg.StatsInterval, log)

	if cfg.Job == config.JobDailyStats {
		_, err := dailyWorker.RunOnce(ctx)
		return err
	}

	srv := &http.Server{
		Addr: cfg.RunAddress,
		Handler: handler.NewRouter(handler.RouterConfig{
			Orders:         orderSvc,
			Stats:          statsSvc,
			DB:             db,
			Log:            log.Named("http"),
			MaxUploadBytes: cfg.MaxUploadBytes,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if cfg.StatsInterval > 0 {
		go dailyWorker.Start(workerCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.RunAddress))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down...")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	cancelWorker()
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
