package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/rootle-api/internal/handler"
	"github.com/noah-isme/rootle-api/internal/middleware"
	"github.com/noah-isme/rootle-api/internal/models"
	"github.com/noah-isme/rootle-api/internal/service"
	"github.com/noah-isme/rootle-api/pkg/config"
	"github.com/noah-isme/rootle-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/rootle-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/rootle-api/pkg/middleware/requestid"
)

type routes struct {
	tokens     middleware.TokenValidator
	audit      middleware.AuditWriter
	metrics    *service.MetricsService
	auth       *handler.AuthHandler
	resources  *handler.ResourceHandler
	moderation *handler.ModerationHandler
	requests   *handler.RequestHandler
	stats      *handler.StatsHandler
	health     *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, h routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(h.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.health.Health)
	r.GET("/ready", h.health.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", h.health.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	api := r.Group(prefix)

	authJWT := middleware.JWT(h.tokens)

	auth := api.Group("/auth")
	auth.POST("/register", h.auth.Register)
	auth.POST("/login", h.auth.Login)
	auth.GET("/departments", h.auth.Departments)
	auth.GET("/me", authJWT, h.auth.Me)

	resources := api.Group("/resources", authJWT)
	resources.POST("", h.resources.Upload)
	resources.GET("", h.resources.List)
	resources.POST("/rate", h.resources.Rate)
	resources.GET("/:id", h.resources.Get)
	resources.POST("/:id/download", h.resources.Download)
	resources.GET("/:id/file", middleware.Audit(h.audit, models.AuditActionFileDownload, "resource"), h.resources.File)
	resources.DELETE("/:id", h.resources.Delete)

	requests := api.Group("/requests", authJWT)
	requests.POST("", h.requests.Create)
	requests.GET("", h.requests.List)
	requests.PUT("/:id/fulfill", h.requests.Fulfill)

	admin := api.Group("/admin", authJWT)
	staff := admin.Group("", middleware.RequireStaff())
	staff.GET("/resources/pending", h.moderation.Pending)
	staff.PUT("/resources/:id/approve", h.moderation.Approve)
	staff.DELETE("/resources/:id/reject", h.moderation.Reject)
	staff.DELETE("/resources/:id/permanent", h.moderation.Purge)
	staff.GET("/deletion-requests", h.moderation.DeletionRequests)
	staff.DELETE("/deletion-requests/:id", h.moderation.RejectDeletion)

	adminOnly := admin.Group("/stats", middleware.RequireRoles(models.RoleAdmin))
	adminOnly.GET("", h.stats.Platform)
	adminOnly.GET("/export", h.stats.Export)

	return r
}
