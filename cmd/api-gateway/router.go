package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/handler"
	"github.com/noah-isme/gradebook-api/internal/middleware"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/pkg/config"
	"github.com/noah-isme/gradebook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/gradebook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gradebook-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth      middleware.TokenValidator
	metrics   *service.MetricsService
	grades    *handler.GradeHandler
	analytics *handler.AnalyticsHandler
	reports   *handler.ReportHandler
	authH     *handler.AuthHandler
	health    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := []models.UserRole{models.RoleAdmin, models.RoleTeacher}
	readers := []models.UserRole{models.RoleAdmin, models.RoleTeacher, models.RoleViewer}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.auth))

	authGroup := api.Group("/auth")
	authGroup.GET("/me", deps.authH.Me)
	authGroup.POST("/tokens", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(logr, "token.issue"), deps.authH.IssueToken)

	grades := api.Group("/grades")
	grades.Use(middleware.WithResponseMeta())
	{
		write := func(action string) []gin.HandlerFunc {
			return []gin.HandlerFunc{middleware.RequireRoles(staff...), middleware.Audit(logr, action)}
		}

		grades.POST("", append(write("grade.create"), deps.grades.Create)...)

		grades.GET("/stats", middleware.RequireRoles(readers...), deps.analytics.OverallStats)
		grades.GET("/stats/:id", middleware.RequireRoles(readers...), deps.analytics.ClassStats)
		grades.GET("/stats/:id/export", middleware.RequireRoles(readers...), deps.reports.ClassExport)
		grades.GET("/averages/learners", middleware.RequireRoles(readers...), deps.analytics.LearnerAverages)
		grades.GET("/averages/classes", middleware.RequireRoles(readers...), deps.analytics.ClassAverages)
		grades.GET("/system", middleware.RequireRoles(models.RoleAdmin), deps.analytics.System)

		grades.GET("/student/:id", deps.grades.StudentRedirect)

		grades.GET("/learner/:id", middleware.RequireRolesOrSelf("id", staff...), deps.grades.ListByLearner)
		grades.GET("/learner/:id/avg-class", middleware.RequireRolesOrSelf("id", readers...), deps.analytics.LearnerAcrossClasses)
		grades.DELETE("/learner/:id", append(write("grade.learner.delete"), deps.grades.DeleteByLearner)...)

		grades.GET("/class/:id", middleware.RequireRoles(staff...), deps.grades.ListByClass)
		grades.GET("/class/:id/avg-learner", middleware.RequireRoles(readers...), deps.analytics.ClassAcrossLearners)
		grades.PATCH("/class/:id", append(write("grade.class.reassign"), deps.grades.ReassignClass)...)
		grades.DELETE("/class/:id", append(write("grade.class.delete"), deps.grades.DeleteByClass)...)

		grades.GET("/:id", middleware.RequireRoles(staff...), deps.grades.Get)
		grades.PATCH("/:id/add", append(write("grade.score.add"), deps.grades.AddScore)...)
		grades.PATCH("/:id/remove", append(write("grade.score.remove"), deps.grades.RemoveScore)...)
		grades.DELETE("/:id", append(write("grade.delete"), deps.grades.Delete)...)
	}

	return r
}
