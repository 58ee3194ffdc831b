package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/internal/middleware"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/service"
	"github.com/noah-isme/learnhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/learnhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/learnhub-api/pkg/middleware/requestid"
)

// Dependencies are the services the HTTP surface is built from.
type Dependencies struct {
	Resolver    middleware.IdentityResolver
	Gate        *service.Gate
	Auth        authService
	Courses     courseService
	Enrollments enrollmentService
	Activities  activityService
	Media       mediaTokenParser
	Metrics     *service.MetricsService
	Store       Pinger
	Logger      *zap.Logger
}

// RouterConfig carries the transport settings.
type RouterConfig struct {
	APIPrefix      string
	QueryTimeout   time.Duration
	AllowedOrigins []string
}

// NewRouter builds the gin engine with the global middleware chain and every route.
func NewRouter(cfg RouterConfig, deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gate == nil {
		deps.Gate = service.NewGate(nil)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	ops := NewMetricsHandler(deps.Metrics, deps.Store, deps.Logger)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Deadline(cfg.QueryTimeout))
	RegisterRoutes(api, deps)
	return r
}

// RegisterRoutes mounts the API endpoints on the group.
func RegisterRoutes(api *gin.RouterGroup, deps Dependencies) {
	auth := NewAuthHandler(deps.Auth)
	courses := NewCourseHandler(deps.Courses)
	enrollments := NewEnrollmentHandler(deps.Enrollments)
	activities := NewActivityHandler(deps.Activities)
	media := NewMediaHandler(deps.Media)
	ops := NewMetricsHandler(deps.Metrics, deps.Store, deps.Logger)

	authenticated := middleware.JWT(deps.Resolver)
	authors := middleware.RequireCapability(deps.Gate, service.CapabilityAuthorCourses)
	readers := middleware.RequireCapability(deps.Gate, service.CapabilityReadCatalog)

	api.POST("/auth/register", auth.Register)
	api.POST("/auth/login", auth.Login)
	api.GET("/auth/me", authenticated, auth.Me)

	api.GET("/courses", courses.List)
	api.GET("/courses/my", authenticated, authors, courses.Mine)
	api.GET("/courses/enrolled/me", authenticated, readers, enrollments.Mine)
	api.GET("/courses/:id", courses.Get)
	api.POST("/courses", authenticated, authors, courses.Create)
	api.PUT("/courses/:id", authenticated, authors, courses.Update)
	api.DELETE("/courses/:id", authenticated, authors, courses.Delete)
	api.POST("/courses/:id/sections", authenticated, authors, courses.AddSection)
	api.GET("/courses/:id/sections/:index/media", authenticated, readers, courses.MediaLink)
	api.POST("/courses/:id/enroll", authenticated, middleware.RequireCapability(deps.Gate, service.CapabilityEnroll), enrollments.Enroll)

	api.GET("/media/:token", media.Redirect)

	audit := api.Group("/activities", authenticated, middleware.RequireCapability(deps.Gate, service.CapabilityReadAudit))
	audit.GET("", activities.List)
	audit.GET("/export", activities.Export)

	api.GET("/admin/stats", authenticated, middleware.RequireRoles(deps.Gate, models.RoleAdmin), ops.Stats)
}
