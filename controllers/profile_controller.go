// controllers/profile_controller.go
package controllers

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/models"
	"github.com/refwise/refwise_backend/services"
)

// ProfileController manages reward-policy profiles (admin only)
type ProfileController struct {
	Profiles    services.ProfileStore
	Assignments services.AssignmentStore
	Audit       services.AuditStore
}

// NewProfileController creates a new profile controller
func NewProfileController(profiles services.ProfileStore, assignments services.AssignmentStore, audit services.AuditStore) *ProfileController {
	return &ProfileController{
		Profiles:    profiles,
		Assignments: assignments,
		Audit:       audit,
	}
}

// CreateProfile creates a new reward-policy profile
func (pc *ProfileController) CreateProfile(c echo.Context) error {
	var profile models.Profile
	if err := c.Bind(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request format",
		})
	}
	if err := c.Validate(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid profile: " + err.Error(),
		})
	}
	if msg := validatePolicy(profile.Policy); msg != "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: msg,
		})
	}

	// Tier selection walks tiers in order, so keep them sorted on write
	sortTiers(profile.Policy.Tiers)

	now := time.Now()
	profile.ID = primitive.NewObjectID()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pc.Profiles.InsertProfile(ctx, &profile); err != nil {
		log.Errorf("Failed to create profile: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create profile",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Profile created",
		Data:    profile,
	})
}

// UpdateProfile replaces a profile's name, kind, policy and active flag
func (pc *ProfileController) UpdateProfile(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid profile id",
		})
	}

	var profile models.Profile
	if err := c.Bind(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request format",
		})
	}
	if err := c.Validate(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid profile: " + err.Error(),
		})
	}
	if msg := validatePolicy(profile.Policy); msg != "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: msg,
		})
	}
	sortTiers(profile.Policy.Tiers)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing, err := pc.Profiles.GetProfile(ctx, id)
	if err != nil {
		log.Errorf("Failed to load profile %s: %v", id.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load profile",
		})
	}
	if existing == nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Profile not found",
		})
	}

	profile.ID = id
	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = time.Now()

	if err := pc.Profiles.UpdateProfile(ctx, &profile); err != nil {
		log.Errorf("Failed to update profile %s: %v", id.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update profile",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile updated",
		Data:    profile,
	})
}

// GetProfile returns one profile by id
func (pc *ProfileController) GetProfile(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid profile id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	profile, err := pc.Profiles.GetProfile(ctx, id)
	if err != nil {
		log.Errorf("Failed to load profile %s: %v", id.Hex(), err)
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

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile retrieved successfully",
		Data:    profile,
	})
}

// ListProfiles returns all profiles
func (pc *ProfileController) ListProfiles(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	profiles, err := pc.Profiles.ListProfiles(ctx)
	if err != nil {
		log.Errorf("Failed to list profiles: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to list profiles",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profiles retrieved successfully",
		Data:    profiles,
	})
}

// DeleteProfile removes a profile that no assignment references
func (pc *ProfileController) DeleteProfile(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid profile id",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := pc.Assignments.CountByProfile(ctx, id)
	if err != nil {
		log.Errorf("Failed to count assignments for profile %s: %v", id.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to delete profile",
		})
	}
	if count > 0 {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Profile is referenced by existing assignments",
		})
	}

	if err := pc.Profiles.DeleteProfile(ctx, id); err != nil {
		log.Errorf("Failed to delete profile %s: %v", id.Hex(), err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to delete profile",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile deleted",
	})
}

// ListAuditLogs returns the audit trail, newest first
func (pc *ProfileController) ListAuditLogs(c echo.Context) error {
	page, _ := strconv.ParseInt(c.QueryParam("page"), 10, 64)
	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entries, total, err := pc.Audit.List(ctx, page, limit)
	if err != nil {
		log.Errorf("Failed to list audit logs: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to list audit logs",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Audit logs retrieved successfully",
		Data: map[string]interface{}{
			"entries": entries,
			"total":   total,
		},
	})
}

// validatePolicy enforces the cross-field rules the struct tags cannot
func validatePolicy(p models.Policy) string {
	switch p.Reward.Type {
	case models.RewardPercentage, models.RewardHybrid:
		if p.Reward.Percentage <= 0 {
			return "Percentage rewards require a positive percentage"
		}
	}
	switch p.Reward.Type {
	case models.RewardFixed, models.RewardHybrid:
		if p.Reward.FixedAmount <= 0 {
			return "Fixed rewards require a positive fixed amount"
		}
	}
	seen := make(map[int]bool)
	for _, tier := range p.Tiers {
		if seen[tier.MinReferrals] {
			return "Tiers must have distinct referral thresholds"
		}
		seen[tier.MinReferrals] = true
	}
	return ""
}

func sortTiers(tiers []models.Tier) {
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].MinReferrals < tiers[j].MinReferrals
	})
}
