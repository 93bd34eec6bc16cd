package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/notebook-tracker-api/internal/handler"
	"github.com/noah-isme/notebook-tracker-api/internal/middleware"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	"github.com/noah-isme/notebook-tracker-api/internal/service"
	"github.com/noah-isme/notebook-tracker-api/pkg/config"
	"github.com/noah-isme/notebook-tracker-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/notebook-tracker-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/notebook-tracker-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens  middleware.TokenValidator
	audit   middleware.AuditRecorder
	metrics *service.MetricsService

	auth          *handler.AuthHandler
	students      *handler.StudentHandler
	cycles        *handler.CycleHandler
	analytics     *handler.AnalyticsHandler
	notifications *handler.NotificationHandler
	exports       *handler.ExportHandler
	auditTrail    *handler.AuditHandler
	health        *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", deps.auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.tokens))
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	secured.GET("/auth/me", deps.auth.Me)

	students := secured.Group("/students/:id")
	students.GET("", staff, deps.students.Get)
	students.POST("/class", middleware.RequireRoles(models.RoleAdmin), deps.students.ChangeClass)
	students.GET("/class-history", staff, deps.students.ClassHistory)
	students.GET("/history", staff, deps.analytics.History)
	students.GET("/risk", staff, deps.analytics.Risk)

	cycles := secured.Group("/cycles", staff)
	cycles.POST("", deps.cycles.Start)
	cycles.GET("/active", deps.cycles.Active)
	cycles.PATCH("/:id/students/:studentId/status", deps.cycles.UpdateStatus)

	classes := secured.Group("/classes/:id", staff)
	classes.GET("/subjects/:subjectId/status", deps.cycles.StatusBoard)
	classes.POST("/subjects/:subjectId/notify", deps.notifications.SendBatch)
	classes.GET("/defaulters", deps.analytics.Defaulters)
	classes.GET("/defaulters/export",
		middleware.Audit(deps.audit, models.AuditActionReportExport, "class", "id"),
		deps.exports.Defaulters)

	secured.POST("/notifications/preview", staff, deps.notifications.Preview)
	secured.POST("/submissions/:id/notify", staff, deps.notifications.Send)

	admin := middleware.RequireRoles(models.RoleAdmin)
	secured.GET("/analytics/system", admin, deps.analytics.System)
	secured.GET("/audit", admin, deps.auditTrail.List)

	return r
}
