// controllers/assignment_controller.go
package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/middleware"
	"github.com/refwise/refwise_backend/models"
	"github.com/refwise/refwise_backend/services"
	"github.com/refwise/refwise_backend/utils"
)

// AssignmentController manages referral assignments (admin only)
type AssignmentController struct {
	Assignments services.AssignmentStore
	Profiles    services.ProfileStore
	Audit       services.AuditStore
	Attribution *services.AttributionService
	Payouts     *services.PayoutService
}

// NewAssignmentController creates a new assignment controller
func NewAssignmentController(assignments services.AssignmentStore, profiles services.ProfileStore, audit services.AuditStore, attribution *services.AttributionService, payouts *services.PayoutService) *AssignmentController {
	return &AssignmentController{
		Assignments: assignments,
		Profiles:    profiles,
		Audit:       audit,
		Attribution: attribution,
		Payouts:     payouts,
	}
}

// CreateAssignmentRequest is the admin create body
type CreateAssignmentRequest struct {
	UserID     string                 `json:"userId" validate:"required"`
	UserEmail  string                 `json:"userEmail" validate:"required,email"`
	ProfileID  string                 `json:"profileId" validate:"required"`
	CustomSlug string                 `json:"customSlug,omitempty"`
	Override   *models.PolicyOverride `json:"override,omitempty"`
}

// CreateAssignment enrolls a user as a referrer with a generated code
func (ac *AssignmentController) CreateAssignment(c echo.Context) error {
	var req CreateAssignmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request format",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid assignment: " + err.Error(),
		})
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user id",
		})
	}
	profileID, err := primitive.ObjectIDFromHex(req.ProfileID)
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

	profile, err := ac.Profiles.GetProfile(ctx, profileID)
	if err != nil {
		log.Errorf("Failed to load profile %s: %v", req.ProfileID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load profile",
		})
	}
	if profile == nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Profile not found",
		})
	}

	for attempt := 0; attempt < 3; attempt++ {
		code, err := utils.GenerateAssignmentCode()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to generate referral code",
			})
		}

		now := time.Now()
		assignment := &models.Assignment{
			UserID:     userID,
			UserEmail:  req.UserEmail,
			ProfileID:  profileID,
			Code:       code,
			CustomSlug: req.CustomSlug,
			Status:     models.AssignmentActive,
			Override:   req.Override,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		err = ac.Assignments.InsertAssignment(ctx, assignment)
		if err == nil {
			return c.JSON(http.StatusCreated, models.Response{
				Status:  http.StatusCreated,
				Message: "Assignment created",
				Data:    assignment,
			})
		}
		if !errors.Is(err, services.ErrDuplicate) {
			log.Errorf("Failed to insert assignment for user %s: %v", req.UserID, err)
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to create assignment",
			})
		}
		if req.CustomSlug != "" {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Custom slug or user already assigned",
			})
		}
	}

	return c.JSON(http.StatusConflict, models.Response{
		Status:  http.StatusConflict,
		Message: "User already has an assignment",
	})
}

// GetAssignment returns one assignment by id
func (ac *AssignmentController) GetAssignment(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid assignment id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	assignment, err := ac.Assignments.GetAssignment(ctx, id)
	if err != nil {
		log.Errorf("Failed to load assignment %s: %v", id.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load assignment",
		})
	}
	if assignment == nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Assignment not found",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Assignment retrieved successfully",
		Data:    assignment,
	})
}

// StatusRequest selects the target lifecycle state
type StatusRequest struct {
	Status models.AssignmentStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED CLOSED"`
	Reason string                  `json:"reason,omitempty"`
}

// SetStatus suspends, reactivates or closes an assignment
func (ac *AssignmentController) SetStatus(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid assignment id",
		})
	}

	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request format",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid status: " + err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	assignment, err := ac.Assignments.GetAssignment(ctx, id)
	if err != nil {
		log.Errorf("Failed to load assignment %s: %v", id.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load assignment",
		})
	}
	if assignment == nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Assignment not found",
		})
	}

	if err := ac.Assignments.SetAssignmentStatus(ctx, id, req.Status); err != nil {
		log.Errorf("Failed to set status on assignment %s: %v", id.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update assignment",
		})
	}

	// Cached code lookups must not keep resolving a dead assignment
	ac.Attribution.InvalidateCode(ctx, assignment)

	if req.Status == models.AssignmentSuspended {
		adminID, _ := middleware.ExtractUserID(c)
		entry := &models.AuditLog{
			EntryID: uuid.NewString(),
			Actor:   "admin:" + adminID,
			Action:  models.AuditAssignmentSuspended,
			Metadata: map[string]interface{}{
				"assignmentId": id.Hex(),
				"reason":       req.Reason,
			},
			CreatedAt: time.Now(),
		}
		if err := ac.Audit.Append(ctx, entry); err != nil {
			log.Errorf("Failed to append audit entry for assignment %s: %v", id.Hex(), err)
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Assignment status updated",
	})
}

// ProcessPayoutRequest is the admin settle body
type ProcessPayoutRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

// ProcessPayout approves or rejects a pending payout request
func (ac *AssignmentController) ProcessPayout(c echo.Context) error {
	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid payout request id",
		})
	}

	adminHex, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}
	adminID, err := primitive.ObjectIDFromHex(adminHex)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	var req ProcessPayoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request format",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	request, err := ac.Payouts.Process(ctx, requestID, adminID, req.Approve, req.Note)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Payout request not found",
			})
		}
		log.Errorf("Failed to process payout request %s: %v", requestID.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process payout request",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payout request processed",
		Data:    request,
	})
}
