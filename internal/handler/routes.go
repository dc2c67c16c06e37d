package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opportunity-tracker-api/internal/middleware"
	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	"github.com/noah-isme/opportunity-tracker-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Regions       *RegionHandler
	Leads         *LeadHandler
	Notifications *NotificationHandler
	BulkUploads   *BulkUploadHandler
	Dashboards    *DashboardHandler
	Exports       *ExportHandler
	Metrics       *MetricsHandler
}

// RegisterRoutes mounts the API under /api/v1 with auth and RBAC.
func RegisterRoutes(r *gin.Engine, h Handlers, authService *service.AuthService) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleDistributor, models.RoleUser)

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", middleware.JWT(authService), h.Auth.Logout)
	auth.POST("/change-password", middleware.JWT(authService), h.Auth.ChangePassword)

	protected := v1.Group("")
	protected.Use(middleware.JWT(authService))

	users := protected.Group("/users")
	users.GET("", admin, h.Users.List)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), h.Users.Get)
	users.POST("", admin, h.Users.Create)
	users.PUT("/:id", admin, h.Users.Update)
	users.DELETE("/:id", admin, h.Users.Deactivate)
	users.POST("/:id/activate", admin, h.Users.Activate)

	regions := protected.Group("/regions")
	regions.GET("", anyRole, h.Regions.List)
	regions.GET("/:id", anyRole, h.Regions.Get)
	regions.POST("", admin, h.Regions.Create)
	regions.PUT("/:id", admin, h.Regions.Update)
	regions.DELETE("/:id", admin, h.Regions.Delete)

	leads := protected.Group("/leads")
	leads.GET("", anyRole, h.Leads.List)
	leads.GET("/check-duplicates", anyRole, h.Leads.CheckDuplicates)
	leads.GET("/:id", anyRole, h.Leads.Get)
	leads.POST("", anyRole, h.Leads.Create)
	leads.PUT("/:id", anyRole, h.Leads.Update)
	leads.POST("/:id/approve", admin, h.Leads.Approve)
	leads.POST("/:id/reject", admin, h.Leads.Reject)
	leads.POST("/:id/claim", anyRole, h.Leads.Claim)
	leads.POST("/:id/stage", anyRole, h.Leads.StageTransition)
	leads.POST("/:id/notes", anyRole, h.Leads.AddNote)
	leads.POST("/:id/override", admin, h.Leads.Override)
	leads.POST("/bulk-assign", admin, h.Leads.BulkAssign)

	notifications := protected.Group("/notifications")
	notifications.GET("", anyRole, h.Notifications.List)
	notifications.POST("/read-all", anyRole, h.Notifications.MarkAllRead)
	notifications.POST("/:id/read", anyRole, h.Notifications.MarkRead)

	bulk := protected.Group("/bulk-uploads")
	bulk.POST("", admin, h.BulkUploads.Upload)
	bulk.GET("", admin, h.BulkUploads.List)
	bulk.GET("/template", admin, h.BulkUploads.Template)
	bulk.GET("/:id", admin, h.BulkUploads.Get)
	bulk.GET("/:id/results", admin, h.BulkUploads.Results)
	bulk.POST("/:id/verify", admin, h.BulkUploads.StartVerification)
	bulk.POST("/:id/cancel", admin, h.BulkUploads.CancelVerification)
	bulk.POST("/:id/commit", admin, h.BulkUploads.Commit)
	bulk.PUT("/rows/:rowId", admin, h.BulkUploads.EditRow)
	bulk.DELETE("/rows/:rowId", admin, h.BulkUploads.DeleteRow)

	dashboard := protected.Group("/dashboard")
	dashboard.GET("/admin", admin, h.Dashboards.Admin)
	dashboard.GET("/me", anyRole, h.Dashboards.User)

	exports := protected.Group("/exports")
	exports.GET("/leads", anyRole, h.Exports.Leads)
	exports.GET("/performance", admin, h.Exports.Performance)

	if h.Metrics != nil {
		protected.GET("/metrics/summary", admin, h.Metrics.Snapshot)
	}
}
