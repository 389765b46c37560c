package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/pressmill-erp/pressmill-erp/internal/app"
	"github.com/pressmill-erp/pressmill-erp/internal/arrival"
	"github.com/pressmill-erp/pressmill-erp/internal/mill"
	"github.com/pressmill-erp/pressmill-erp/internal/platform/db"
	"github.com/pressmill-erp/pressmill-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	millRepo := mill.NewRepository(pool)
	arrivalRepo := arrival.NewRepository(pool)
	recomputer := jobs.NewRatioRecomputer(millRepo, arrivalRepo, logger)

	ratioTask, err := jobs.NewCompensationRatioTask(jobs.CompensationRatioPayload{})
	if err != nil {
		logger.Error("build ratio task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCompensationRatio, Handler: recomputer.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RatioCron, Task: ratioTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
