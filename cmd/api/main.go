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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-engine/api/swagger"
	"github.com/noah-isme/academic-engine/internal/academic"
	"github.com/noah-isme/academic-engine/internal/handler"
	internalmiddleware "github.com/noah-isme/academic-engine/internal/middleware"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/repository"
	"github.com/noah-isme/academic-engine/internal/service"
	"github.com/noah-isme/academic-engine/pkg/cache"
	"github.com/noah-isme/academic-engine/pkg/config"
	"github.com/noah-isme/academic-engine/pkg/database"
	"github.com/noah-isme/academic-engine/pkg/jobs"
	"github.com/noah-isme/academic-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-engine/pkg/middleware/requestid"
)

// @title Academic Engine API
// @version 1.0.0
// @description Grading, GPA, enrollment eligibility and department selection.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// Redis only backs the standing read cache; the engine keeps working without it.
	var redisClient redis.UniversalClient
	if cfg.Standing.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, standing cache disabled", zap.Error(err))
		} else {
			redisClient = client
			defer client.Close()
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, "academic")
	gradeRepo := repository.NewGradeRepository(db)
	componentRepo := repository.NewGradeComponentRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	termRepo := repository.NewTermRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	applicationRepo := repository.NewDepartmentApplicationRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Standing.CacheTTL, logr, redisClient != nil)

	var worker *service.StandingWorker
	queue := jobs.NewQueue("standing", func(ctx context.Context, job jobs.Job) error {
		return worker.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Jobs.WorkerConcurrency,
		MaxRetries: cfg.Jobs.WorkerRetries,
		Logger:     logr,
	})
	standingSvc := service.NewStandingService(gradeRepo, termRepo, studentRepo, cacheSvc, queue, logr)
	worker = service.NewStandingWorker(standingSvc, metricsSvc, logr)
	queue.Start(ctx)
	defer queue.Stop()

	gradeSvc := service.NewGradeService(gradeRepo, enrollmentRepo, sectionRepo, componentRepo, standingSvc, metricsSvc,
		models.GradeCalculationScheme(cfg.Engine.GradeScheme), validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, sectionRepo, gradeRepo, studentRepo, standingSvc, metricsSvc,
		academic.EnrollmentPolicy{WaitlistEnabled: cfg.Engine.WaitlistEnabled}, cfg.Engine.DefaultMaxCredits, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, applicationRepo, studentRepo, standingSvc, metricsSvc,
		cfg.Engine.RejectionReasonMinLen, validate, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	gradeHandler := handler.NewGradeHandler(gradeSvc)
	standingHandler := handler.NewStandingHandler(standingSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	departmentHandler := handler.NewDepartmentHandler(departmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	healthHandler := handler.NewHealthHandler(map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis":    cacheRepo.Ping,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher}
	admins := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}
	everyone := append([]models.UserRole{models.RoleStudent}, staff...)

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokenSvc))

	grades := api.Group("/grades")
	grades.GET("/enrollments/:id", internalmiddleware.RequireRoles(staff...), gradeHandler.GetCourseGrade)
	grades.POST("/enrollments/:id/publish", internalmiddleware.RequireRoles(admins...), gradeHandler.Publish)
	grades.POST("/scores", internalmiddleware.RequireRoles(staff...), gradeHandler.RecordScore)
	grades.POST("/scores/bulk", internalmiddleware.RequireRoles(staff...), gradeHandler.BulkRecordScores)

	students := api.Group("/students")
	students.GET("/:id/standing", internalmiddleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleTeacher), internalmiddleware.Self), standingHandler.Get)
	students.GET("/:id/departments/eligibility", internalmiddleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), internalmiddleware.Self), departmentHandler.Eligibility)

	enrollments := api.Group("/enrollments")
	enrollments.POST("/check", internalmiddleware.RequireRoles(everyone...), enrollmentHandler.Check)
	enrollments.POST("", internalmiddleware.RequireRoles(everyone...), enrollmentHandler.Create)
	enrollments.DELETE("/:id", internalmiddleware.RequireRoles(everyone...), enrollmentHandler.Delete)

	applications := api.Group("/department-applications")
	applications.GET("", internalmiddleware.RequireRoles(models.RoleStudent, models.RoleSuperAdmin, models.RoleAdmin), departmentHandler.List)
	applications.POST("", internalmiddleware.RequireRoles(models.RoleStudent, models.RoleSuperAdmin, models.RoleAdmin), departmentHandler.Submit)
	applications.POST("/:id/approve", internalmiddleware.RequireRoles(admins...), departmentHandler.Approve)
	applications.POST("/:id/reject", internalmiddleware.RequireRoles(admins...), departmentHandler.Reject)
	applications.POST("/:id/withdraw", internalmiddleware.RequireRoles(models.RoleStudent), departmentHandler.Withdraw)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
