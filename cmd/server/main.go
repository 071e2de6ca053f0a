// Package main runs the ClipStack HTTP API server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clipstack/backend/config"
	"github.com/clipstack/backend/internal/audit"
	"github.com/clipstack/backend/internal/auth"
	"github.com/clipstack/backend/internal/authz"
	"github.com/clipstack/backend/internal/middleware"
	"github.com/clipstack/backend/internal/models"
	"github.com/clipstack/backend/internal/organizations"
	"github.com/clipstack/backend/internal/videos"
	"github.com/clipstack/backend/internal/worker"
	"github.com/clipstack/backend/pkg/database"
	"github.com/clipstack/backend/pkg/queue"
	"github.com/clipstack/backend/pkg/redis"
	"github.com/clipstack/backend/pkg/response"
	"github.com/clipstack/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	// A malformed capability table must never serve a request.
	if err := authz.ValidateCapabilityMatrix(); err != nil {
		logger.Fatal("capability matrix", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			VideosBucket:         cfg.AWS.VideosBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Audit trail: requests enqueue, the worker persists.
	jobQueue := queue.NewQueue(rdb.Client, logger)
	recorder := audit.NewRecorder(jobQueue, logger)
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo, logger)
	auditProcessor := worker.NewAuditProcessor(auditRepo, jobQueue, logger)

	// Organizations and memberships back both the API and the authz gate.
	orgRepo := organizations.NewRepository(pool)

	resolver := authz.NewResolver(orgRepo, orgRepo)
	gate := middleware.NewGate(resolver, recorder, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, orgRepo, jwtService, logger)

	orgHandler := organizations.NewHandler(orgRepo, authRepo, recorder, logger)

	// Videos
	videoRepo := videos.NewRepository(pool)
	videoHandler := videos.NewHandler(videoRepo, orgRepo, s3Client, recorder, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		api.POST("/auth/switch-organization", authHandler.SwitchOrganization)

		api.GET("/organizations", orgHandler.ListMine)
		api.POST("/organizations", orgHandler.Create)
	}

	// Organization-scoped API. RequireMembership resolves the caller's grant
	// fresh on every request; role and permission checks layer on top.
	org := api.Group("/organizations/:orgID")
	org.Use(gate.RequireMembership())
	{
		org.GET("", orgHandler.Get)
		org.PATCH("/settings", gate.RequirePermission(authz.CapManageSettings), orgHandler.UpdateSettings)
		org.DELETE("", gate.RequireRole(models.RoleAdmin), orgHandler.Delete)

		org.GET("/members", orgHandler.ListMembers)
		org.POST("/members", gate.RequirePermission(authz.CapManageMembers), orgHandler.AddMember)
		org.PATCH("/members/:userID", gate.RequirePermission(authz.CapManageMembers), orgHandler.UpdateMemberRole)
		org.DELETE("/members/:userID", gate.RequirePermission(authz.CapManageMembers), orgHandler.RemoveMember)

		org.GET("/audit", gate.RequireRole(models.RoleAdmin), auditHandler.List)

		org.GET("/videos", videoHandler.List)
		org.POST("/videos", gate.RequirePermission(authz.CapUploadVideo), videoHandler.Create)
		org.POST("/videos/upload", gate.RequirePermission(authz.CapUploadVideo), videoHandler.DirectUpload)
		org.GET("/videos/all", gate.RequirePermission(authz.CapViewAllVideos), videoHandler.ListAll)
		org.GET("/videos/stats", gate.RequirePermission(authz.CapViewAllVideos), videoHandler.GetStats)
		org.GET("/videos/:videoID", videoHandler.Get)
		org.GET("/videos/:videoID/download", videoHandler.DownloadURL)
		org.POST("/videos/:videoID/complete", gate.RequirePermission(authz.CapUploadVideo), videoHandler.Complete)
		org.DELETE("/videos/:videoID", videoHandler.Delete)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (audit event persistence)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go auditProcessor.Run(workerCtx)
	logger.Info("audit worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
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
