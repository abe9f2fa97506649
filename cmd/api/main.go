package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/hrline/dtr-api/api/swagger"
	"github.com/hrline/dtr-api/internal/handler"
	"github.com/hrline/dtr-api/internal/middleware"
	"github.com/hrline/dtr-api/internal/models"
	"github.com/hrline/dtr-api/internal/repository"
	"github.com/hrline/dtr-api/internal/service"
	"github.com/hrline/dtr-api/pkg/cache"
	"github.com/hrline/dtr-api/pkg/config"
	"github.com/hrline/dtr-api/pkg/database"
	"github.com/hrline/dtr-api/pkg/logger"
	corsmiddleware "github.com/hrline/dtr-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hrline/dtr-api/pkg/middleware/requestid"
)

// @title DTR API
// @version 1.0.0
// @description Daily time record reconciliation service
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, view caching disabled", "error", err)
		redisClient = nil
	}

	timeRecordRepo := repository.NewTimeRecordRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	userRepo := repository.NewUserRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Views.CacheTTL, logr, cfg.Views.CacheEnabled)
	}

	validate := validator.New()
	policy := service.NewDerivationPolicy(cfg.Attendance.LateThreshold, cfg.Attendance.RequiredHours)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "dtr-api",
	})
	attendanceSvc := service.NewAttendanceService(timeRecordRepo, leaveRepo, employeeRepo, cacheSvc, validate, logr, policy)
	recordSvc := service.NewTimeRecordService(timeRecordRepo, leaveRepo, employeeRepo, cacheSvc, validate, logr, cfg.Attendance.MaxBulkRecords)
	exportSvc := service.NewExportService(attendanceSvc, logr, cfg.Exports.MaxRows)
	employeeSvc := service.NewEmployeeService(employeeRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, exportSvc)
	recordHandler := handler.NewRecordHandler(recordSvc)
	employeeHandler := handler.NewEmployeeHandler(employeeSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc), middleware.WithResponseMeta())

	attendance := protected.Group("/attendance")
	attendance.GET("", attendanceHandler.List)
	attendance.GET("/calendar", attendanceHandler.Calendar)
	attendance.GET("/summary", attendanceHandler.Summary)
	if cfg.Exports.Enabled {
		attendance.GET("/export", attendanceHandler.Export)
	}

	records := attendance.Group("/records")
	records.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleHR))
	records.POST("", middleware.Audit(userRepo, models.AuditActionRecordCreate, "time_records"), recordHandler.Create)
	records.PUT("", middleware.Audit(userRepo, models.AuditActionRecordUpdate, "time_records"), recordHandler.Update)
	records.POST("/bulk", middleware.Audit(userRepo, models.AuditActionBulkImport, "time_records"), recordHandler.BulkImport)
	records.DELETE("/:id", middleware.Audit(userRepo, models.AuditActionRecordDelete, "time_records"), recordHandler.Delete)

	employees := protected.Group("/employees")
	employees.GET("", employeeHandler.List)
	employees.GET("/:id", employeeHandler.Get)

	internal := protected.Group("/system")
	internal.Use(middleware.RequireRoles(models.RoleAdmin))
	internal.GET("/metrics", metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
