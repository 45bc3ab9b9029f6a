package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/refwise/refwise_backend/controllers"
	"github.com/refwise/refwise_backend/middleware"
)

// RegisterAdminRoutes sets up profile, assignment and payout administration
func RegisterAdminRoutes(e *echo.Echo, pc *controllers.ProfileController, ac *controllers.AssignmentController) {
	admin := e.Group("/api/admin")
	admin.Use(middleware.JWTMiddleware())
	admin.Use(middleware.RequireAdmin)

	// Reward-policy profiles
	admin.POST("/profiles", pc.CreateProfile)
	admin.GET("/profiles", pc.ListProfiles)
	admin.GET("/profiles/:id", pc.GetProfile)
	admin.PUT("/profiles/:id", pc.UpdateProfile)
	admin.DELETE("/profiles/:id", pc.DeleteProfile)

	// Assignments
	admin.POST("/assignments", ac.CreateAssignment)
	admin.GET("/assignments/:id", ac.GetAssignment)
	admin.PUT("/assignments/:id/status", ac.SetStatus)

	// Payout settlement
	admin.POST("/payouts/:id/process", ac.ProcessPayout)

	// Compliance trail
	admin.GET("/audit-logs", pc.ListAuditLogs)
}
