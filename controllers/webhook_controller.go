// controllers/webhook_controller.go
package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/refwise/refwise_backend/models"
	"github.com/refwise/refwise_backend/services"
)

// WebhookController receives payment-provider and registration events. The
// provider retries on any 5xx, so handlers return 200 for every event that
// was understood, including ones that produce no ledger change.
type WebhookController struct {
	Commissions *services.CommissionService
	Adjustments *services.AdjustmentService
	Referrals   *services.ReferralService
	SiteURL     string
}

// NewWebhookController creates a new webhook controller
func NewWebhookController(commissions *services.CommissionService, adjustments *services.AdjustmentService, referrals *services.ReferralService, siteURL string) *WebhookController {
	return &WebhookController{
		Commissions: commissions,
		Adjustments: adjustments,
		Referrals:   referrals,
		SiteURL:     siteURL,
	}
}

// HandlePaymentSucceeded records a commission for a captured charge
func (wc *WebhookController) HandlePaymentSucceeded(c echo.Context) error {
	var evt models.PaymentSucceededEvent
	if err := c.Bind(&evt); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request format",
		})
	}
	if err := c.Validate(&evt); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid payment event: " + err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	commission, err := wc.Commissions.RecordPayment(ctx, evt)
	if err != nil {
		log.Errorf("Failed to record payment %s: %v", evt.PaymentID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to record payment",
		})
	}

	if commission == nil {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Payment acknowledged, no commission recorded",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission recorded",
		Data:    commission,
	})
}

// HandlePaymentRefunded adjusts or cancels the commission for a refund
func (wc *WebhookController) HandlePaymentRefunded(c echo.Context) error {
	var evt models.PaymentRefundedEvent
	if err := c.Bind(&evt); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request format",
		})
	}
	if err := c.Validate(&evt); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid refund event: " + err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := wc.Adjustments.HandleRefund(ctx, evt); err != nil {
		log.Errorf("Failed to handle refund for payment %s: %v", evt.PaymentID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to handle refund",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Refund processed",
	})
}

// HandleChargeback cancels the commission and flags the referral
func (wc *WebhookController) HandleChargeback(c echo.Context) error {
	var evt models.PaymentChargedBackEvent
	if err := c.Bind(&evt); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request format",
		})
	}
	if err := c.Validate(&evt); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid chargeback event: " + err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := wc.Adjustments.HandleChargeback(ctx, evt); err != nil {
		log.Errorf("Failed to handle chargeback for payment %s: %v", evt.PaymentID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to handle chargeback",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Chargeback processed",
	})
}

// HandleUserRegistered attributes a new account to a referral code
func (wc *WebhookController) HandleUserRegistered(c echo.Context) error {
	var evt models.UserRegisteredEvent
	if err := c.Bind(&evt); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request format",
		})
	}
	if err := c.Validate(&evt); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid registration event: " + err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	referral, err := wc.Referrals.Register(ctx, evt)
	if err != nil {
		// Bad codes and self-referrals are acknowledged, not retried
		switch {
		case errors.Is(err, services.ErrInvalidCode):
			log.Infof("Registration with unknown referral code %q ignored", evt.ReferralCode)
			return c.JSON(http.StatusOK, models.Response{
				Status:  http.StatusOK,
				Message: "Registration acknowledged, referral code not attributable",
			})
		case errors.Is(err, services.ErrSelfReferral):
			log.Infof("Self-referral attempt on code %q ignored", evt.ReferralCode)
			return c.JSON(http.StatusOK, models.Response{
				Status:  http.StatusOK,
				Message: "Registration acknowledged, self-referral ignored",
			})
		case errors.Is(err, services.ErrNotFound):
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid referred user id",
			})
		}
		log.Errorf("Failed to register referral for code %q: %v", evt.ReferralCode, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to register referral",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral registered",
		Data:    referral,
	})
}

// HandleClickRedirect records a click on a shared referral link and sends
// the visitor on to the signup page with the code preserved.
func (wc *WebhookController) HandleClickRedirect(c echo.Context) error {
	code := c.Param("code")

	attr := models.Attribution{
		SourceIP:    c.RealIP(),
		UTMSource:   c.QueryParam("utm_source"),
		UTMMedium:   c.QueryParam("utm_medium"),
		UTMCampaign: c.QueryParam("utm_campaign"),
	}
	email := c.QueryParam("email")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Dead codes still redirect; the visitor should never see an error page
	if _, err := wc.Referrals.TrackClick(ctx, code, email, attr); err != nil && !errors.Is(err, services.ErrInvalidCode) {
		log.Errorf("Failed to track click on code %q: %v", code, err)
	}

	target := wc.SiteURL + "/signup?ref=" + url.QueryEscape(code)
	return c.Redirect(http.StatusFound, target)
}
