package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/tutorlink/tutoring-api/internal/handler"
	"github.com/tutorlink/tutoring-api/internal/middleware"
	"github.com/tutorlink/tutoring-api/internal/models"
	"github.com/tutorlink/tutoring-api/internal/service"
	"github.com/tutorlink/tutoring-api/pkg/config"
	"github.com/tutorlink/tutoring-api/pkg/logger"
	corsmiddleware "github.com/tutorlink/tutoring-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tutorlink/tutoring-api/pkg/middleware/requestid"
)

// Services bundles everything the router needs to wire endpoints.
type Services struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Availability  *service.AvailabilityService
	Appointments  *service.AppointmentService
	Assignments   *service.AssignmentService
	Materials     *service.MaterialService
	Progress      *service.ProgressService
	Reports       *service.ReportService
	Notifications *service.NotificationService
	Metrics       *service.MetricsService
}

// New builds the gin engine with all middleware and routes wired.
func New(cfg *config.Config, logr *zap.Logger, svcs Services) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(svcs.Metrics))

	metricsHandler := handler.NewMetricsHandler(svcs.Metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(svcs.Auth)
	userHandler := handler.NewUserHandler(svcs.Users)
	availabilityHandler := handler.NewAvailabilityHandler(svcs.Availability)
	appointmentHandler := handler.NewAppointmentHandler(svcs.Appointments)
	assignmentHandler := handler.NewAssignmentHandler(svcs.Assignments)
	materialHandler := handler.NewMaterialHandler(svcs.Materials)
	progressHandler := handler.NewProgressHandler(svcs.Progress)
	reportHandler := handler.NewReportHandler(svcs.Reports)
	notificationHandler := handler.NewNotificationHandler(svcs.Notifications)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/signin", authHandler.Signin)
		auth.GET("/profile", middleware.JWT(svcs.Auth), authHandler.Profile)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(svcs.Auth))

	professionals := middleware.RequireRoles(models.RoleTutor, models.RoleAdvisor, models.RoleAdmin)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	authed.GET("/metrics/snapshot", adminOnly, metricsHandler.Snapshot)

	users := authed.Group("/users")
	{
		users.GET("", adminOnly, userHandler.List)
		users.GET("/:id", middleware.RBAC("admin", "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RBAC("admin", "SELF"), userHandler.UpdateProfile)
		users.PATCH("/:id/status", adminOnly, userHandler.ChangeStatus)
		users.DELETE("/:id", adminOnly, userHandler.Delete)
	}

	availability := authed.Group("/availability")
	{
		availability.GET("", availabilityHandler.List)
		availability.GET("/available", availabilityHandler.Available)
		availability.GET("/my-slots", professionals, availabilityHandler.MySlots)
		availability.POST("", professionals, availabilityHandler.Create)
		availability.PATCH("/bulk/status", adminOnly, availabilityHandler.BulkStatus)
		availability.GET("/:id", availabilityHandler.Get)
		availability.PUT("/:id", professionals, availabilityHandler.Update)
		availability.PATCH("/:id/status", professionals, availabilityHandler.ChangeStatus)
		availability.DELETE("/:id", professionals, availabilityHandler.Delete)
	}

	appointments := authed.Group("/appointments")
	{
		appointments.GET("", appointmentHandler.List)
		appointments.GET("/upcoming", appointmentHandler.Upcoming)
		appointments.POST("", appointmentHandler.Create)
		appointments.GET("/:id", appointmentHandler.Get)
		appointments.PUT("/:id", appointmentHandler.Update)
		appointments.PATCH("/:id/cancel", appointmentHandler.Cancel)
		appointments.POST("/:id/rate", appointmentHandler.Rate)
		appointments.POST("/:id/notes", professionals, appointmentHandler.AddNote)
	}

	assignments := authed.Group("/assignments")
	{
		assignments.GET("", assignmentHandler.List)
		assignments.GET("/my-assignments", assignmentHandler.Mine)
		assignments.GET("/pending", assignmentHandler.Pending)
		assignments.GET("/statistics", assignmentHandler.Statistics)
		assignments.POST("", professionals, assignmentHandler.Create)
		assignments.GET("/:id", assignmentHandler.Get)
		assignments.PUT("/:id", professionals, assignmentHandler.Update)
		assignments.DELETE("/:id", professionals, assignmentHandler.Delete)
		assignments.POST("/:id/submit", assignmentHandler.Submit)
		assignments.POST("/:id/grade", professionals, assignmentHandler.Grade)
		assignments.POST("/:id/return", professionals, assignmentHandler.Return)
		assignments.POST("/:id/request-extension", assignmentHandler.RequestExtension)
		assignments.POST("/:id/approve-extension", professionals, assignmentHandler.ApproveExtension)
		assignments.POST("/:id/comments", assignmentHandler.AddComment)
	}

	materials := authed.Group("/materials")
	{
		materials.GET("", materialHandler.List)
		materials.GET("/popular", materialHandler.Popular)
		materials.GET("/my-materials", professionals, materialHandler.Mine)
		materials.POST("", professionals, materialHandler.Create)
		materials.GET("/:id", materialHandler.Get)
		materials.PUT("/:id", professionals, materialHandler.Update)
		materials.PATCH("/:id/status", professionals, materialHandler.ChangeStatus)
		materials.POST("/:id/rate", materialHandler.Rate)
		materials.POST("/:id/share", professionals, materialHandler.Share)
		materials.POST("/:id/download", materialHandler.Download)
		materials.DELETE("/:id", professionals, materialHandler.Delete)
	}

	progress := authed.Group("/progress")
	{
		progress.GET("", progressHandler.List)
		progress.GET("/my-progress", progressHandler.Mine)
		progress.GET("/statistics", progressHandler.Statistics)
		progress.POST("", professionals, progressHandler.Create)
		progress.GET("/:id", progressHandler.Get)
		progress.PUT("/:id", professionals, progressHandler.Update)
		progress.POST("/:id/history", professionals, progressHandler.AddHistory)
		progress.PATCH("/:id/goals", professionals, progressHandler.UpdateGoal)
		progress.DELETE("/:id", professionals, progressHandler.Delete)
	}

	reports := authed.Group("/reports")
	{
		reports.GET("", reportHandler.List)
		reports.GET("/templates", reportHandler.Templates)
		reports.POST("", professionals, reportHandler.Create)
		reports.GET("/:id", reportHandler.Get)
		reports.POST("/:id/deliver", professionals, reportHandler.Deliver)
		reports.GET("/:id/download", reportHandler.Download)
		reports.DELETE("/:id", professionals, reportHandler.Delete)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.GET("/stats", notificationHandler.Stats)
		notifications.POST("", professionals, notificationHandler.Create)
		notifications.POST("/bulk", adminOnly, notificationHandler.Bulk)
		notifications.POST("/sweep", adminOnly, notificationHandler.Sweep)
		notifications.PATCH("/read-all", notificationHandler.MarkAllRead)
		notifications.PATCH("/:id/read", notificationHandler.MarkRead)
		notifications.PATCH("/:id/click", notificationHandler.Click)
		notifications.POST("/:id/respond", notificationHandler.Respond)
		notifications.DELETE("/:id", notificationHandler.Delete)
	}

	return r
}
