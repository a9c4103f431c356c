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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/sekolahku/roster-api/api/swagger"
	"github.com/sekolahku/roster-api/internal/handler"
	"github.com/sekolahku/roster-api/internal/middleware"
	"github.com/sekolahku/roster-api/internal/models"
	"github.com/sekolahku/roster-api/internal/repository"
	"github.com/sekolahku/roster-api/internal/service"
	"github.com/sekolahku/roster-api/pkg/cache"
	"github.com/sekolahku/roster-api/pkg/config"
	"github.com/sekolahku/roster-api/pkg/database"
	"github.com/sekolahku/roster-api/pkg/logger"
	corsmiddleware "github.com/sekolahku/roster-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sekolahku/roster-api/pkg/middleware/requestid"
	"github.com/sekolahku/roster-api/pkg/storage"
)

// @title Roster API
// @version 1.0.0
// @description Lesson roster management with conflict detection
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient := cacheClient(cfg, logr)
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TimetableTTL, logr, cfg.Cache.Enabled)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "roster-api",
	})
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	rosterSvc := service.NewRosterService(rosterRepo, cacheSvc, metricsSvc, validate, logr)
	timetableSvc := service.NewTimetableService(rosterRepo, cacheSvc, cfg.Cache.TimetableTTL, logr)

	localStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(timetableSvc, localStorage, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		Workers:   cfg.Exports.WorkerConcurrency,
		Retries:   cfg.Exports.WorkerRetries,
	}, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportSvc.Start(ctx)
	defer exportSvc.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	classroomHandler := handler.NewClassroomHandler(classroomSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	classHandler := handler.NewClassHandler(classSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	healthHandler := handler.NewHealthHandler(db, redisClient, metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", healthHandler.Prometheus)
	r.GET("/stats", healthHandler.Stats)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authn := middleware.JWT(authSvc)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authn, authHandler.Logout)
		auth.GET("/me", authn, authHandler.Me)
	}

	teachers := api.Group("/teachers", authn)
	{
		teachers.GET("", teacherHandler.List)
		teachers.GET("/:id", teacherHandler.Get)
		teachers.GET("/:id/timetable", timetableHandler.TeacherTimetable)
		teachers.POST("", staff, teacherHandler.Create)
		teachers.PUT("/:id", staff, teacherHandler.Update)
		teachers.DELETE("/:id", staff, teacherHandler.Deactivate)
	}

	classrooms := api.Group("/classrooms", authn)
	{
		classrooms.GET("", classroomHandler.List)
		classrooms.GET("/:id", classroomHandler.Get)
		classrooms.POST("", staff, classroomHandler.Create)
		classrooms.PUT("/:id", staff, classroomHandler.Update)
		classrooms.DELETE("/:id", staff, classroomHandler.Delete)
	}

	subjects := api.Group("/subjects", authn)
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("", staff, subjectHandler.Create)
		subjects.PUT("/:id", staff, subjectHandler.Update)
		subjects.DELETE("/:id", staff, subjectHandler.Delete)
	}

	classes := api.Group("/classes", authn)
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.GET("/:id/timetable", timetableHandler.ClassTimetable)
		classes.POST("", staff, classHandler.Create)
		classes.PUT("/:id", staff, classHandler.Update)
		classes.DELETE("/:id", staff, classHandler.Delete)
	}

	rosters := api.Group("/rosters", authn)
	{
		rosters.GET("", rosterHandler.List)
		rosters.GET("/:id", rosterHandler.Get)
		rosters.POST("/check", rosterHandler.Check)
		rosters.POST("", staff, rosterHandler.Create)
		rosters.POST("/bulk", staff, rosterHandler.BulkCreate)
		rosters.PUT("/:id", staff, rosterHandler.Update)
		rosters.DELETE("/:id", staff, rosterHandler.Delete)
	}

	exports := api.Group("/timetables/export")
	{
		exports.POST("", authn, staff, exportHandler.Enqueue)
		exports.GET("/jobs/:id", authn, exportHandler.Status)
		// Downloads carry their own signed token, so no session is required.
		exports.GET("/:token", exportHandler.Download)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// cacheClient connects to Redis when the timetable cache is enabled. A cache
// outage degrades reads to the database instead of failing startup.
func cacheClient(cfg *config.Config, logr *zap.Logger) *redis.Client {
	if !cfg.Cache.Enabled {
		return nil
	}

	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
		return nil
	}

	return client
}
