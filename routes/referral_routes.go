package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/controllers"
	"github.com/refwise/refwise_backend/middleware"
	"github.com/refwise/refwise_backend/websocket"
)

// RegisterReferralRoutes sets up the referrer-facing dashboard routes
func RegisterReferralRoutes(e *echo.Echo, rc *controllers.ReferralController, hub *websocket.Hub) {
	referrals := e.Group("/api/referrals")
	referrals.Use(middleware.JWTMiddleware())

	referrals.GET("/dashboard", rc.GetDashboard)
	referrals.GET("/commissions", rc.GetCommissions)
	referrals.POST("/payouts", rc.RequestPayout)
	referrals.POST("/join", rc.Join)

	// Live ledger notifications. Authentication happens over the socket so
	// browser clients can connect without custom headers.
	e.GET("/ws/notifications", func(c echo.Context) error {
		return websocket.HandleWebSocket(c, hub, primitive.NilObjectID)
	})
}
