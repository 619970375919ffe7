// Package main runs the background report worker: renders queued exports and archives them on S3.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/presenca/backend/config"
	"github.com/presenca/backend/internal/analytics"
	"github.com/presenca/backend/internal/metrics"
	"github.com/presenca/backend/internal/reports"
	"github.com/presenca/backend/internal/store/postgres"
	"github.com/presenca/backend/internal/tokens"
	"github.com/presenca/backend/internal/worker"
	"github.com/presenca/backend/pkg/database"
	"github.com/presenca/backend/pkg/queue"
	"github.com/presenca/backend/pkg/redis"
	"github.com/presenca/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		logger.Fatal("worker requires STORAGE_DRIVER=postgres")
	}
	if !cfg.Redis.Enabled() || !cfg.AWS.Enabled() {
		logger.Fatal("worker requires REDIS_ADDR and AWS_S3_REPORTS_BUCKET")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		ApplicationName: "presenca-worker",
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ReportsBucket:        cfg.AWS.ReportsBucket,
		Endpoint:             cfg.AWS.Endpoint,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	st := postgres.New(pool)
	m := metrics.New(prometheus.DefaultRegisterer)
	registry := tokens.NewRegistry(st.Tokens, st.Meetings, st.Events, m, logger)
	exporter := reports.NewService(analytics.NewService(st, registry, m, logger), st, m, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewExportProcessor(exporter, s3Client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
