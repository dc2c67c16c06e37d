package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/opportunity-tracker-api/api/swagger"
	"github.com/noah-isme/opportunity-tracker-api/internal/handler"
	"github.com/noah-isme/opportunity-tracker-api/internal/middleware"
	"github.com/noah-isme/opportunity-tracker-api/internal/places"
	"github.com/noah-isme/opportunity-tracker-api/internal/repository"
	"github.com/noah-isme/opportunity-tracker-api/internal/service"
	"github.com/noah-isme/opportunity-tracker-api/pkg/cache"
	"github.com/noah-isme/opportunity-tracker-api/pkg/config"
	"github.com/noah-isme/opportunity-tracker-api/pkg/database"
	"github.com/noah-isme/opportunity-tracker-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/opportunity-tracker-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/opportunity-tracker-api/pkg/middleware/requestid"
	"github.com/noah-isme/opportunity-tracker-api/pkg/storage"
)

// @title Opportunity Tracker API
// @version 1.0.0
// @description Sales lead tracking for the schools distribution network
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	leadRepo := repository.NewLeadRepository(db)
	userRepo := repository.NewUserRepository(db)
	regionRepo := repository.NewRegionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	bulkRepo := repository.NewBulkUploadRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.Enabled)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, logr, false)
	}

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "opportunity-tracker-api",
	})
	userSvc := service.NewUserService(userRepo, nil, logr)
	regionSvc := service.NewRegionService(regionRepo, nil, logr)
	duplicateSvc := service.NewDuplicateService(leadRepo, logr)
	leadSvc := service.NewLeadService(leadRepo, userRepo, regionRepo, notificationRepo, duplicateSvc, nil, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	dashboardSvc := service.NewDashboardService(leadRepo, userRepo, cacheSvc, logr)
	exportSvc := service.NewExportService(leadRepo, cfg.Exports.MaxRows, logr, nil, nil, nil)
	exportSvc.SetPerformanceSource(dashboardSvc)

	placesClient := places.NewClient(cfg.Places)
	bulkSvc := service.NewBulkUploadService(bulkRepo, userRepo, leadRepo, regionRepo, notificationRepo, placesClient, nil, logr, cfg.BulkUpload)
	if archive, err := storage.NewLocalStorage(cfg.BulkUpload.ArchiveDir); err != nil {
		logr.Sugar().Warnw("upload archive unavailable", "error", err)
	} else {
		bulkSvc.SetArchive(archive)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.BulkUpload.Enabled {
		bulkSvc.Start(ctx)
		defer bulkSvc.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Regions:       handler.NewRegionHandler(regionSvc),
		Leads:         handler.NewLeadHandler(leadSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		BulkUploads:   handler.NewBulkUploadHandler(bulkSvc),
		Dashboards:    handler.NewDashboardHandler(dashboardSvc),
		Exports:       handler.NewExportHandler(exportSvc),
		Metrics:       metricsHandler,
	}, authSvc)

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
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
