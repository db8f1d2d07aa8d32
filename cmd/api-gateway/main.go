package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ndip-rw/data-portal-api/api/swagger"
	"github.com/ndip-rw/data-portal-api/internal/gateway"
	"github.com/ndip-rw/data-portal-api/internal/handler"
	"github.com/ndip-rw/data-portal-api/internal/middleware"
	"github.com/ndip-rw/data-portal-api/internal/models"
	"github.com/ndip-rw/data-portal-api/internal/repository"
	"github.com/ndip-rw/data-portal-api/internal/service"
	"github.com/ndip-rw/data-portal-api/pkg/cache"
	"github.com/ndip-rw/data-portal-api/pkg/config"
	"github.com/ndip-rw/data-portal-api/pkg/database"
	"github.com/ndip-rw/data-portal-api/pkg/logger"
	corsmiddleware "github.com/ndip-rw/data-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ndip-rw/data-portal-api/pkg/middleware/requestid"
	"github.com/ndip-rw/data-portal-api/pkg/storage"
)

// @title National Data Portal API
// @version 1.0.0
// @description Dataset catalog, criteria-driven data access requests and review workflow
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	datasetRepo := repository.NewDatasetRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	datasetSvc := service.NewDatasetService(datasetRepo, auditRepo, validate, logr)
	schemaSvc := service.NewSchemaService(datasetRepo, logr)
	queryBackend := gateway.NewQueryClient(cfg.QueryBackend, logr)
	previewSvc := service.NewPreviewService(datasetRepo, cacheRepo, queryBackend, metricsSvc, logr, service.PreviewConfig{
		SampleSize: cfg.Preview.SampleSize,
		CacheTTL:   cfg.Preview.CacheTTL,
	})
	reviewSvc := service.NewReviewService(reviewRepo, requestRepo, auditRepo, metricsSvc, validate, logr, service.ReviewConfig{
		ShortCircuit: cfg.Reviews.ShortCircuit,
	})
	assignmentPolicy := service.NewPoolAssignmentPolicy(userRepo)
	requestSvc := service.NewRequestService(requestRepo, datasetRepo, reviewSvc, reviewRepo, assignmentPolicy, auditRepo, metricsSvc, validate, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, datasetRepo, cacheRepo, metricsSvc, logr, service.AnalyticsConfig{
		Enabled:  cfg.Analytics.Enabled,
		CacheTTL: cfg.Analytics.CacheTTL,
	})
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(requestRepo, exportStore, signer, auditRepo, logr, service.ExportConfig{
		Enabled: cfg.Exports.Enabled,
	})
	auditSvc := service.NewAuditService(auditRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	datasetHandler := handler.NewDatasetHandler(datasetSvc, schemaSvc)
	previewHandler := handler.NewPreviewHandler(previewSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	{
		secured.GET("/datasets", datasetHandler.List)
		secured.GET("/datasets/:id", datasetHandler.Get)
		secured.GET("/datasets/:id/schema", datasetHandler.Schema)
		secured.POST("/datasets/:id/preview", previewHandler.Preview)
		secured.GET("/dataset-categories", datasetHandler.Categories)
		secured.GET("/admin-areas", datasetHandler.AdminAreas)

		admin := secured.Group("")
		admin.Use(middleware.RequirePermission(models.ActionConfigureDatasets))
		{
			admin.POST("/datasets", datasetHandler.Create)
			admin.PUT("/datasets/:id", datasetHandler.Update)
			admin.DELETE("/datasets/:id", datasetHandler.Deactivate)
		}

		secured.POST("/requests", requestHandler.Create)
		secured.GET("/requests", requestHandler.List)
		secured.GET("/requests/:id", requestHandler.Get)
		secured.PATCH("/requests/:id", requestHandler.Update)
		secured.DELETE("/requests/:id", requestHandler.Delete)
		secured.POST("/requests/:id/submit", requestHandler.Submit)

		reviews := secured.Group("/reviews")
		reviews.Use(middleware.RequirePermission(models.ActionReview))
		{
			reviews.GET("/my", reviewHandler.MyReviews)
			reviews.POST("/:id/decision", reviewHandler.Decide)
		}

		analytics := secured.Group("/analytics")
		analytics.Use(middleware.RequirePermission(models.ActionViewAnalytics))
		{
			analytics.GET("/requests", analyticsHandler.Requests)
			analytics.GET("/system", analyticsHandler.System)
		}

		secured.GET("/audit-logs",
			middleware.RequirePermission(models.ActionViewAuditTrail),
			auditHandler.List)

		secured.POST("/exports/requests",
			middleware.RequirePermission(models.ActionExportData),
			exportHandler.Generate)
	}

	// Download tokens carry their own HMAC and expiry, no JWT required.
	api.GET("/exports/download",
		middleware.Audit(auditRepo, models.AuditActionExportDownload, "export"),
		exportHandler.Download)

	if cfg.Exports.Enabled {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				exportSvc.CleanupExpired(24 * time.Hour)
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
