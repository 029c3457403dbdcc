package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Joello61/candi-tracker-api/internal/handlers"
	"github.com/Joello61/candi-tracker-api/internal/middleware"
)

type Handlers struct {
	Auth          *handlers.AuthHandler
	User          *handlers.UserHandler
	Verify        *handlers.VerifyHandler
	Notification  *handlers.NotificationHandler
	Application   *handlers.ApplicationHandler
	Report        *handlers.ReportHandler
	Health        *handlers.HealthHandler
	JWTSecret     []byte
	RateLimiter   *middleware.RateLimiter
	EnableSwagger bool
}

func SetupRoutes(r *gin.Engine, h Handlers) *gin.Engine {
	// ---- ops
	r.GET("/healthz", h.Health.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if h.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// ---- public
	auth := r.Group("/auth", h.RateLimiter.Limit("auth"))
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/login/two-factor", h.Auth.LoginTwoFactor)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/verify-email", h.Auth.VerifyEmail)
		auth.POST("/password/forgot", h.Auth.ForgotPassword)
		auth.POST("/password/reset", h.Auth.ResetPassword)
	}

	// ---- protected
	api := r.Group("/", middleware.AuthMiddleware(h.JWTSecret))

	api.POST("/auth/logout", h.Auth.Logout)

	me := api.Group("/me")
	{
		me.GET("", h.User.Me)
		me.POST("/email/resend", h.User.ResendEmailVerification)
		me.POST("/two-factor", h.User.SetTwoFactor)
		me.POST("/phone", h.User.RequestPhoneVerification)
		me.POST("/phone/confirm", h.User.ConfirmPhone)
		me.POST("/delete", h.User.RequestDeletion)
		me.POST("/delete/confirm", h.User.ConfirmDeletion)
	}

	verification := api.Group("/verification", h.RateLimiter.Limit("verification"))
	{
		verification.POST("/send", h.Verify.Send)
		verification.POST("/verify", h.Verify.Verify)
		verification.GET("/status", h.Verify.Status)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.Notification.List)
		notifications.GET("/unread-count", h.Notification.UnreadCount)
		notifications.GET("/ws", h.Notification.Stream)
		notifications.POST("/read-all", h.Notification.MarkAllRead)
		notifications.POST("/delete", h.Notification.DeleteMany)
		notifications.POST("/:id/read", h.Notification.MarkRead)
		notifications.DELETE("/:id", h.Notification.Delete)
	}

	settings := api.Group("/settings")
	{
		settings.GET("/notifications", h.Notification.GetSettings)
		settings.PUT("/notifications", h.Notification.UpdateSettings)
	}

	apps := api.Group("/applications")
	{
		apps.GET("", h.Application.List)
		apps.POST("", h.Application.Create)
		apps.GET("/:id", h.Application.Get)
		apps.DELETE("/:id", h.Application.Delete)
		apps.POST("/:id/status", h.Application.UpdateStatus)
		apps.GET("/:id/interviews", h.Application.ListInterviews)
		apps.POST("/:id/interviews", h.Application.AddInterview)
	}
	api.DELETE("/interviews/:id", h.Application.DeleteInterview)

	reports := api.Group("/reports")
	{
		reports.GET("/weekly", h.Report.Weekly)
		reports.GET("/weekly.pdf", h.Report.WeeklyPDF)
	}

	return r
}
