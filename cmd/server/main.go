// Package main runs the attendance HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/presenca/backend/config"
	"github.com/presenca/backend/internal/admission"
	"github.com/presenca/backend/internal/analytics"
	"github.com/presenca/backend/internal/attendance"
	"github.com/presenca/backend/internal/attendees"
	"github.com/presenca/backend/internal/auth"
	"github.com/presenca/backend/internal/checkin"
	"github.com/presenca/backend/internal/events"
	"github.com/presenca/backend/internal/maintenance"
	"github.com/presenca/backend/internal/metrics"
	"github.com/presenca/backend/internal/middleware"
	"github.com/presenca/backend/internal/realtime"
	"github.com/presenca/backend/internal/regions"
	"github.com/presenca/backend/internal/reports"
	"github.com/presenca/backend/internal/store"
	"github.com/presenca/backend/internal/store/memory"
	"github.com/presenca/backend/internal/store/postgres"
	"github.com/presenca/backend/internal/teams"
	"github.com/presenca/backend/internal/tokens"
	"github.com/presenca/backend/pkg/database"
	"github.com/presenca/backend/pkg/queue"
	"github.com/presenca/backend/pkg/redis"
	"github.com/presenca/backend/pkg/response"
	"github.com/presenca/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	loc, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		logger.Fatal("timezone", zap.String("tz", cfg.Attendance.Timezone), zap.Error(err))
	}
	now := time.Now
	today := func() civil.Date { return civil.DateOf(now().In(loc)) }

	ctx := context.Background()

	var st store.Store
	var pool *pgxpool.Pool
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		st = memory.New().Store()
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err = database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxConns),
			ApplicationName: "presenca-server",
		}, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		st = postgres.New(pool)
	}

	bootstrap := auth.NewBootstrapper(st, auth.BootstrapConfig{
		AdminPhone:    cfg.Bootstrap.AdminPhone,
		AdminName:     cfg.Bootstrap.AdminName,
		AdminPassword: cfg.Bootstrap.AdminPassword,
		Regions:       cfg.Bootstrap.Regions,
	}, logger)
	if err := bootstrap.Ensure(ctx); err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}

	// Redis is optional: without it the hub stays single-instance and async exports are off.
	var hub *realtime.Hub
	var jobs reports.Jobs
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
		jobs = queue.NewQueue(rdb.Client, logger)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	var links reports.Links
	if cfg.AWS.Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReportsBucket:        cfg.AWS.ReportsBucket,
			Endpoint:             cfg.AWS.Endpoint,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			links = s3Client
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Identity
	regionHandler := regions.NewHandler(st.Regions, logger)
	attendeeHandler := attendees.NewHandler(st.Attendees, st.Regions, st.Attendances, logger)
	authHandler := auth.NewHandler(st.Attendees, st.Admins, jwtService, logger)

	// Events and tokens
	eventHandler := events.NewHandler(events.NewService(st.Events, st.Meetings, today), st.Events, st.Meetings, logger)
	registry := tokens.NewRegistry(st.Tokens, st.Meetings, st.Events, m, logger)
	tokenHandler := tokens.NewHandler(registry, cfg.Attendance.ServerAddress, logger)

	// Check-in
	processor := checkin.NewProcessor(st, admission.NewGate(loc), hub, m, logger)
	checkinHandler := checkin.NewHandler(processor, now, logger)
	attendanceHandler := attendance.NewHandler(st.Attendances, st.Meetings, hub, logger)

	// Analytics and reports
	analyticsSvc := analytics.NewService(st, registry, m, logger)
	analyticsHandler := analytics.NewHandler(analyticsSvc, registry, today, logger)
	reportHandler := reports.NewHandler(reports.NewService(analyticsSvc, st, m, logger), jobs, links, today, logger)

	teamHandler := teams.NewHandler(teams.NewService(st, logger), logger)
	maintenanceHandler := maintenance.NewHandler(st.Purger, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		checks := gin.H{"storage": cfg.Storage.Driver}
		if pool != nil && pool.Ping(c.Request.Context()) != nil {
			response.ServiceUnavailable(c, "database unreachable")
			return
		}
		if rdb != nil {
			checks["redis"] = rdb.Healthy(c.Request.Context())
		}
		response.OK(c, gin.H{"status": "ok", "checks": checks})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public: scan page, registration form
	router.GET("/regions", regionHandler.List)
	router.GET("/scan/:token", checkinHandler.Inspect)
	router.POST("/scan/:token", checkinHandler.CheckIn)
	router.POST("/register/:token", checkinHandler.Register)
	router.POST("/admin/login", authHandler.Login)

	// External API (shared token)
	ext := router.Group("/api")
	ext.Use(middleware.APIToken(cfg.Attendance.APIToken))
	{
		ext.GET("/events", eventHandler.List)
		ext.GET("/attendees", attendeeHandler.List)
		ext.POST("/attendance", checkinHandler.API)
	}

	// Administration (JWT required)
	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService))
	{
		admin.POST("/admins", middleware.RequireOriginal(), authHandler.Grant)

		admin.POST("/regions", regionHandler.Create)
		admin.PUT("/regions/:id", regionHandler.Rename)
		admin.DELETE("/regions/:id", regionHandler.Delete)

		admin.GET("/attendees", attendeeHandler.List)
		admin.POST("/attendees", attendeeHandler.Create)
		admin.GET("/attendees/:id", attendeeHandler.Get)
		admin.PUT("/attendees/:id", attendeeHandler.Update)
		admin.DELETE("/attendees/:id", attendeeHandler.Delete)

		admin.GET("/events", eventHandler.List)
		admin.POST("/events", eventHandler.Create)
		admin.GET("/events/:id", eventHandler.Get)
		admin.PUT("/events/:id", eventHandler.Update)
		admin.DELETE("/events/:id", eventHandler.Delete)
		admin.POST("/events/:id/meetings", eventHandler.CreateMeeting)
		admin.PUT("/meetings/:id", eventHandler.UpdateMeeting)
		admin.DELETE("/meetings/:id", eventHandler.DeleteMeeting)

		admin.POST("/meetings/:id/tokens", tokenHandler.Issue)
		admin.GET("/meetings/:id/tokens", tokenHandler.List)
		admin.POST("/tokens/:id/toggle", tokenHandler.Toggle)
		admin.GET("/qr/:value", tokenHandler.QR)
		admin.GET("/tokens/open", analyticsHandler.OpenTokens)

		admin.GET("/meetings/:id/attendance", attendanceHandler.List)
		admin.DELETE("/attendances/:id", attendanceHandler.Delete)

		admin.GET("/dashboard", analyticsHandler.Dashboard)
		admin.GET("/events/:id/stats", analyticsHandler.Event)
		admin.GET("/meetings/:id/absentees", analyticsHandler.Absentees)

		admin.GET("/dashboard/export/:fmt", reportHandler.Dashboard)
		admin.GET("/meetings/:id/attendance/export/:fmt", reportHandler.Meeting)
		admin.GET("/events/:id/attendance/export/:fmt", reportHandler.Event)
		admin.POST("/events/:id/exports", reportHandler.Enqueue)
		admin.GET("/exports/:id", reportHandler.Status)

		admin.GET("/meetings/:id/teams", teamHandler.List)
		admin.POST("/meetings/:id/teams", teamHandler.Create)
		admin.DELETE("/meetings/:id/teams/:team_id", teamHandler.Delete)
		admin.GET("/teams/:id/candidates", teamHandler.Candidates)
		admin.PUT("/teams/:id/members", teamHandler.SetMembers)

		admin.POST("/maintenance/purge", middleware.RequireOriginal(), maintenanceHandler.Purge)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtService.ValidateAdminID))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
