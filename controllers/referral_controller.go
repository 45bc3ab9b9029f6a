// controllers/referral_controller.go
package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/middleware"
	"github.com/refwise/refwise_backend/models"
	"github.com/refwise/refwise_backend/services"
	"github.com/refwise/refwise_backend/utils"
)

// ReferralController serves the referrer-facing dashboard endpoints
type ReferralController struct {
	Assignments      services.AssignmentStore
	Commissions      services.CommissionStore
	Profiles         services.ProfileStore
	Payouts          *services.PayoutService
	SiteURL          string
	DefaultProfileID string
}

// NewReferralController creates a new referral controller
func NewReferralController(assignments services.AssignmentStore, commissions services.CommissionStore, profiles services.ProfileStore, payouts *services.PayoutService, siteURL, defaultProfileID string) *ReferralController {
	return &ReferralController{
		Assignments:      assignments,
		Commissions:      commissions,
		Profiles:         profiles,
		Payouts:          payouts,
		SiteURL:          siteURL,
		DefaultProfileID: defaultProfileID,
	}
}

// DashboardData is the referrer's aggregate view
type DashboardData struct {
	Assignment   *models.Assignment                  `json:"assignment"`
	ReferralLink string                              `json:"referralLink"`
	QRCode       string                              `json:"qrCode,omitempty"`
	Available    float64                             `json:"available"`
	Totals       map[models.CommissionStatus]float64 `json:"totals"`
}

// GetDashboard returns the caller's assignment, balances and share link
func (rc *ReferralController) GetDashboard(c echo.Context) error {
	assignment, ok := rc.callerAssignment(c)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	totals, err := rc.Commissions.SumByStatus(ctx, assignment.ID)
	if err != nil {
		log.Errorf("Failed to aggregate commissions for assignment %s: %v", assignment.ID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load dashboard",
		})
	}

	code := assignment.Code
	if assignment.CustomSlug != "" {
		code = assignment.CustomSlug
	}
	link := rc.SiteURL + "/r/" + code

	qrCode, err := generateQRCode(link)
	if err != nil {
		// The dashboard is still useful without the QR image
		log.Errorf("Failed to generate QR code for assignment %s: %v", assignment.ID.Hex(), err)
		qrCode = ""
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Dashboard retrieved successfully",
		Data: DashboardData{
			Assignment:   assignment,
			ReferralLink: link,
			QRCode:       qrCode,
			Available:    services.RoundCents(assignment.TotalEarned - assignment.TotalPaidOut),
			Totals:       totals,
		},
	})
}

// GetCommissions returns the caller's commission history, newest first
func (rc *ReferralController) GetCommissions(c echo.Context) error {
	assignment, ok := rc.callerAssignment(c)
	if !ok {
		return nil
	}

	page, _ := strconv.ParseInt(c.QueryParam("page"), 10, 64)
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	commissions, total, err := rc.Commissions.ListByAssignment(ctx, assignment.ID, page, limit)
	if err != nil {
		log.Errorf("Failed to list commissions for assignment %s: %v", assignment.ID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load commissions",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commissions retrieved successfully",
		Data: map[string]interface{}{
			"commissions": commissions,
			"total":       total,
		},
	})
}

// RequestPayout opens a payout request for the caller's available balance
func (rc *ReferralController) RequestPayout(c echo.Context) error {
	userID, err := callerUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	request, err := rc.Payouts.Request(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "No referral assignment found",
			})
		case errors.Is(err, services.ErrBelowPayoutThreshold):
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Available balance is below the payout threshold",
			})
		case errors.Is(err, services.ErrPayoutPending):
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "A payout request is already pending",
			})
		}
		log.Errorf("Failed to create payout request for user %s: %v", userID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create payout request",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Payout request created",
		Data:    request,
	})
}

// JoinRequest is the self-serve become-a-referrer body
type JoinRequest struct {
	ProfileID  string `json:"profileId,omitempty"`
	CustomSlug string `json:"customSlug,omitempty"`
}

// Join creates an assignment for the authenticated user
func (rc *ReferralController) Join(c echo.Context) error {
	userID, err := callerUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	var req JoinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request format",
		})
	}

	profileHex := req.ProfileID
	if profileHex == "" {
		profileHex = rc.DefaultProfileID
	}
	profileID, err := primitive.ObjectIDFromHex(profileHex)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid profile id",
		})
	}

	if req.CustomSlug != "" && !utils.ValidSlug(req.CustomSlug) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Custom slug must be 4-32 lowercase letters, digits or dashes",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	profile, err := rc.Profiles.GetProfile(ctx, profileID)
	if err != nil {
		log.Errorf("Failed to load profile %s: %v", profileHex, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load profile",
		})
	}
	if profile == nil || !profile.IsActive {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Profile not found or inactive",
		})
	}

	existing, err := rc.Assignments.GetAssignmentByUserID(ctx, userID)
	if err != nil {
		log.Errorf("Failed to look up assignment for user %s: %v", userID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create assignment",
		})
	}
	if existing != nil {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "You already have a referral assignment",
			Data:    existing,
		})
	}

	email, _ := c.Get("email").(string)

	// Code collisions are rare; retry a few times before giving up
	var assignment *models.Assignment
	for attempt := 0; attempt < 3; attempt++ {
		code, err := utils.GenerateAssignmentCode()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to generate referral code",
			})
		}

		now := time.Now()
		candidate := &models.Assignment{
			UserID:     userID,
			UserEmail:  email,
			ProfileID:  profileID,
			Code:       code,
			CustomSlug: req.CustomSlug,
			Status:     models.AssignmentActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		err = rc.Assignments.InsertAssignment(ctx, candidate)
		if err == nil {
			assignment = candidate
			break
		}
		if !errors.Is(err, services.ErrDuplicate) {
			log.Errorf("Failed to insert assignment for user %s: %v", userID.Hex(), err)
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to create assignment",
			})
		}
		// A duplicate slug will never resolve by regenerating the code
		if req.CustomSlug != "" {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Custom slug is already taken",
			})
		}
	}
	if assignment == nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create assignment",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Referral assignment created",
		Data:    assignment,
	})
}

// callerAssignment loads the authenticated user's assignment. When it
// returns ok=false the error response has already been written.
func (rc *ReferralController) callerAssignment(c echo.Context) (*models.Assignment, bool) {
	userID, err := callerUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	assignment, err := rc.Assignments.GetAssignmentByUserID(ctx, userID)
	if err != nil {
		log.Errorf("Failed to look up assignment for user %s: %v", userID.Hex(), err)
		c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load assignment",
		})
		return nil, false
	}
	if assignment == nil {
		c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "No referral assignment found",
		})
		return nil, false
	}
	return assignment, true
}

func callerUserID(c echo.Context) (primitive.ObjectID, error) {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return primitive.ObjectIDFromHex(userID)
}

// generateQRCode renders the referral link as a base64 PNG data URI
func generateQRCode(content string) (string, error) {
	qrCode, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}

	// Scale the QR code to a reasonable size (300x300 pixels)
	qrCode, err = barcode.Scale(qrCode, 300, 300)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qrCode); err != nil {
		return "", err
	}

	base64QR := base64.StdEncoding.EncodeToString(buf.Bytes())
	return "data:image/png;base64," + base64QR, nil
}
