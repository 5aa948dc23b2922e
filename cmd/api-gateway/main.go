package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/capstone-hub-api/api/swagger"
	"github.com/noah-isme/capstone-hub-api/internal/handler"
	internalmiddleware "github.com/noah-isme/capstone-hub-api/internal/middleware"
	"github.com/noah-isme/capstone-hub-api/internal/repository"
	"github.com/noah-isme/capstone-hub-api/internal/router"
	"github.com/noah-isme/capstone-hub-api/internal/service"
	"github.com/noah-isme/capstone-hub-api/migrations"
	"github.com/noah-isme/capstone-hub-api/pkg/cache"
	"github.com/noah-isme/capstone-hub-api/pkg/config"
	"github.com/noah-isme/capstone-hub-api/pkg/database"
	"github.com/noah-isme/capstone-hub-api/pkg/jobs"
	"github.com/noah-isme/capstone-hub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/capstone-hub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/capstone-hub-api/pkg/middleware/requestid"
	"github.com/noah-isme/capstone-hub-api/pkg/storage"
)

const exportCleanupInterval = 30 * time.Minute

// @title Capstone Hub API
// @version 1.0.0
// @description Academic capstone coordination: groups, supervisors, milestones, submissions and grading.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, migrations.FS, "."); err != nil {
			logr.Sugar().Fatalw("failed to migrate database", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	blobs, err := storage.NewLocalStorage(cfg.Storage.Dir, cfg.Storage.PublicURL)
	if err != nil {
		logr.Sugar().Fatalw("failed to init submission storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Export.Dir, "")
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	chatRepo := repository.NewChatRepository(db)
	requestRepo := repository.NewSupervisorRequestRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tokenRepo := repository.NewTokenRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	dispatcher := service.NewNotificationDispatcher(notificationRepo, cacheSvc, metricsSvc, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})

	authSvc := service.NewAuthService(userRepo, tokenRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	groupSvc := service.NewGroupService(service.GroupServiceParams{
		Groups:      groupRepo,
		Invitations: invitationRepo,
		Chats:       chatRepo,
		Users:       userRepo,
		Tx:          db,
		Notifier:    dispatcher,
		Validator:   validate,
		Logger:      logr,
	})
	chatSvc := service.NewChatService(chatRepo, groupRepo, validate, logr)
	requestSvc := service.NewSupervisorRequestService(requestRepo, groupRepo, userRepo, db, dispatcher, validate, logr)
	projectSvc := service.NewProjectService(projectRepo, groupRepo, milestoneRepo, submissionRepo, validate, logr)
	milestoneSvc := service.NewMilestoneService(projectRepo, milestoneRepo, submissionRepo, groupRepo, db, validate, logr)
	submissionSvc := service.NewSubmissionService(service.SubmissionServiceParams{
		Submissions:    submissionRepo,
		Milestones:     milestoneRepo,
		Projects:       projectRepo,
		Members:        groupRepo,
		Blobs:          blobs,
		Tx:             db,
		Notifier:       dispatcher,
		Validator:      validate,
		Logger:         logr,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
	signer := storage.NewSignedURLSigner(cfg.Export.SignedURLSecret, cfg.Export.SignedURLTTL)
	exportSvc := service.NewExportService(projectRepo, milestoneRepo, submissionRepo, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Export.SignedURLTTL,
	}, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, cacheSvc, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Users:         userRepo,
		Requests:      requestRepo,
		Groups:        groupRepo,
		Projects:      projectRepo,
		Milestones:    milestoneRepo,
		Submissions:   submissionRepo,
		Notifications: notificationRepo,
		MyGroup:       groupSvc,
		Cache:         cacheSvc,
		Logger:        logr,
		Config:        service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	keepAliveSvc := service.NewKeepAliveService(service.KeepAliveConfig{
		URL:      cfg.KeepAlive.URL,
		Interval: cfg.KeepAlive.Interval,
		Timeout:  cfg.KeepAlive.Timeout,
	}, nil, metricsSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Workers outlive the signal so requests drained by Shutdown can still notify.
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()
	if keepAliveSvc.Enabled() {
		go keepAliveSvc.Run(ctx)
	}
	go runExportCleanup(ctx, exportSvc, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Config{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		ExposedHeaders: []string{reqidmiddleware.Header, internalmiddleware.CacheHeader, "Content-Disposition"},
	}))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	router.Register(r, router.Handlers{
		Auth:               handler.NewAuthHandler(authSvc),
		Users:              handler.NewUserHandler(userSvc),
		Groups:             handler.NewGroupHandler(groupSvc),
		Chat:               handler.NewChatHandler(chatSvc),
		SupervisorRequests: handler.NewSupervisorRequestHandler(requestSvc),
		Projects:           handler.NewProjectHandler(projectSvc, exportSvc),
		Milestones:         handler.NewMilestoneHandler(milestoneSvc),
		Submissions:        handler.NewSubmissionHandler(submissionSvc, cfg.Storage.MaxUploadBytes, 2*service.MaxFilesPerSlot),
		Notifications:      handler.NewNotificationHandler(notificationSvc),
		Dashboard:          handler.NewDashboardHandler(dashboardSvc),
		Exports:            handler.NewExportHandler(exportSvc),
		System:             handler.NewSystemHandler(metricsSvc, db, keepAliveSvc),
	}, router.Options{
		Prefix:        cfg.APIPrefix,
		Authenticator: authSvc,
		Audit:         auditRepo,
		Logger:        logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, logr *zap.Logger) {
	ticker := time.NewTicker(exportCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
