package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/refwise/refwise_backend/controllers"
)

// RegisterWebhookRoutes sets up the payment-provider event endpoints and the
// public click redirect. These stay outside the JWT group; the provider
// authenticates at the transport layer, not with user tokens.
func RegisterWebhookRoutes(e *echo.Echo, wc *controllers.WebhookController) {
	webhooks := e.Group("/api/webhooks")
	webhooks.POST("/payment/succeeded", wc.HandlePaymentSucceeded)
	webhooks.POST("/payment/refunded", wc.HandlePaymentRefunded)
	webhooks.POST("/payment/chargeback", wc.HandleChargeback)
	webhooks.POST("/user/registered", wc.HandleUserRegistered)

	// Shareable link target
	e.GET("/r/:code", wc.HandleClickRedirect)
}
