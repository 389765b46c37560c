package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/app"
	"github.com/pressmill-erp/pressmill-erp/internal/arrival"
	"github.com/pressmill-erp/pressmill-erp/internal/catalog"
	"github.com/pressmill-erp/pressmill-erp/internal/mill"
	"github.com/pressmill-erp/pressmill-erp/internal/palox"
	"github.com/pressmill-erp/pressmill-erp/internal/platform/db"
	"github.com/pressmill-erp/pressmill-erp/internal/production"
	"github.com/pressmill-erp/pressmill-erp/internal/shared"
	"github.com/pressmill-erp/pressmill-erp/internal/stock"
	"github.com/pressmill-erp/pressmill-erp/internal/tank"
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

	millCfg := mill.DefaultConfig()
	if cfg.JuiceDensity != "" {
		density, err := decimal.NewFromString(cfg.JuiceDensity)
		if err != nil {
			logger.Error("parse juice density", slog.Any("error", err))
			os.Exit(1)
		}
		millCfg.JuiceDensity = density
	}
	if err := millCfg.Validate(); err != nil {
		logger.Error("mill config", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	millRepo := mill.NewRepository(dbpool)
	products := catalog.NewRepository(dbpool)
	store := stock.NewRepository(dbpool)
	tanks := tank.NewPgRepository(dbpool)
	engine := tank.NewEngine(tanks, store)

	paloxRepo := palox.NewRepository(dbpool)
	paloxService := palox.NewService(paloxRepo, millRepo, millRepo, auditLogger)
	paloxHandler := palox.NewHandler(logger, paloxService)

	arrivalRepo := arrival.NewRepository(dbpool)
	arrivalService := arrival.NewService(arrivalRepo, millRepo, paloxService,
		millRepo, products, store, millCfg, auditLogger)
	arrivalHandler := arrival.NewHandler(logger, arrivalService)

	productionRepo := production.NewRepository(dbpool)
	productionService := production.NewService(productionRepo, arrivalRepo,
		arrivalService, paloxService, millRepo, products, tanks, engine, store,
		millCfg, auditLogger)
	productionHandler := production.NewHandler(logger, productionService)

	tankHandler := tank.NewHandler(logger, engine, tanks)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PaloxHandler:      paloxHandler,
		ArrivalHandler:    arrivalHandler,
		ProductionHandler: productionHandler,
		TankHandler:       tankHandler,
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
