package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/rootle-api/api/swagger"
	"github.com/noah-isme/rootle-api/internal/handler"
	"github.com/noah-isme/rootle-api/internal/repository"
	"github.com/noah-isme/rootle-api/internal/service"
	"github.com/noah-isme/rootle-api/migrations"
	"github.com/noah-isme/rootle-api/pkg/cache"
	"github.com/noah-isme/rootle-api/pkg/config"
	"github.com/noah-isme/rootle-api/pkg/database"
	"github.com/noah-isme/rootle-api/pkg/jobs"
	"github.com/noah-isme/rootle-api/pkg/logger"
	"github.com/noah-isme/rootle-api/pkg/storage"
)

// @title Rootle API
// @version 1.0.0
// @description Campus resource sharing: uploads, moderation, wishlist and ratings.
// @BasePath /api
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, migrations.FS, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logr.Fatal("failed to init storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	app := buildApp(cfg, logr, db, redisClient, files)

	app.queue.Start(ctx)
	if app.janitor != nil {
		if err := app.janitor.Start(ctx); err != nil {
			logr.Fatal("failed to start orphan sweeper", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if app.janitor != nil {
		app.janitor.Stop()
	}
	app.queue.Stop()
	logr.Info("server stopped")
}

type application struct {
	router  *gin.Engine
	queue   *jobs.Queue
	janitor *service.Janitor
}

func buildApp(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client, files storage.FileStore) *application {
	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Stats.CacheTTL, logr, redisClient != nil)
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	router := jobs.NewRouter()
	queue := jobs.NewQueue("rootle", router.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})

	authSvc := service.NewAuthService(userRepo, departmentRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	departmentSvc := service.NewDepartmentService(departmentRepo, cacheSvc, logr)
	requestSvc := service.NewRequestService(requestRepo, userRepo, validate, logr)
	resourceSvc := service.NewResourceService(service.ResourceServiceDeps{
		Resources: resourceRepo,
		Ratings:   ratingRepo,
		Wishlist:  requestSvc,
		Files:     files,
		Signer:    signer,
		Jobs:      queue,
		Audit:     userRepo,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	}, service.ResourceServiceConfig{
		MaxFileSize:       cfg.Uploads.MaxFileSizeBytes,
		AllowedExtensions: cfg.Uploads.AllowedExtensions,
		APIPrefix:         cfg.APIPrefix,
	})
	moderationSvc := service.NewModerationService(service.ModerationServiceDeps{
		Resources: resourceRepo,
		Files:     files,
		Jobs:      queue,
		Audit:     userRepo,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Logger:    logr,
	})
	statsSvc := service.NewStatsService(statsRepo, cacheSvc, metrics, userRepo, cfg.Stats.CacheTTL, logr)

	service.RegisterJobHandlers(router, resourceSvc, files, metrics, logr)

	var janitor *service.Janitor
	if local, ok := files.(*storage.LocalStorage); ok && cfg.Janitor.Enabled {
		janitor = service.NewJanitor(local, resourceRepo, cfg.Janitor.Schedule, cfg.Janitor.OrphanTTL, logr)
	} else if cfg.Janitor.Enabled {
		logr.Info("orphan sweeper disabled for remote storage", zap.String("driver", cfg.Storage.Driver))
	}

	checks := []handler.ReadinessCheck{{Name: "database", Check: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	engine := newRouter(cfg, logr, routes{
		tokens:     authSvc,
		audit:      userRepo,
		metrics:    metrics,
		auth:       handler.NewAuthHandler(authSvc, departmentSvc),
		resources:  handler.NewResourceHandler(resourceSvc, cfg.Uploads.MaxFileSizeBytes),
		moderation: handler.NewModerationHandler(moderationSvc),
		requests:   handler.NewRequestHandler(requestSvc),
		stats:      handler.NewStatsHandler(statsSvc),
		health:     handler.NewMetricsHandler(metrics, checks...),
	})

	return &application{router: engine, queue: queue, janitor: janitor}
}
