package services

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/models"
)

func newReferralService(store *memStore) *ReferralService {
	attribution := NewAttributionService(store, store, nil)
	return NewReferralService(attribution, store, store)
}

func registration(code, email string) models.UserRegisteredEvent {
	return models.UserRegisteredEvent{
		ReferralCode:   code,
		ReferredEmail:  email,
		ReferredUserID: primitive.NewObjectID().Hex(),
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a registered referral and counts it", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))

		svc := newReferralService(store)
		referral, err := svc.Register(ctx, registration(assignment.Code, "friend@example.com"))
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if referral.Status != models.ReferralRegistered {
			t.Errorf("status = %s, want REGISTERED", referral.Status)
		}
		if referral.ReferredUserID == nil {
			t.Error("referral has no linked user")
		}
		if got := store.assignments[assignment.ID].TotalReferrals; got != 1 {
			t.Errorf("totalReferrals = %d, want 1", got)
		}
	})

	t.Run("resolves the custom slug too", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))
		store.assignments[assignment.ID].CustomSlug = "jane-recommends"

		svc := newReferralService(store)
		if _, err := svc.Register(ctx, registration("jane-recommends", "friend@example.com")); err != nil {
			t.Fatalf("Register via slug: %v", err)
		}
	})

	t.Run("unknown code fails closed", func(t *testing.T) {
		store := newMemStore()
		seedAffiliate(store, percentagePolicy(10))

		svc := newReferralService(store)
		_, err := svc.Register(ctx, registration("REF-NOSUCH", "friend@example.com"))
		if !errors.Is(err, ErrInvalidCode) {
			t.Errorf("err = %v, want ErrInvalidCode", err)
		}
	})

	t.Run("suspended assignment's code no longer attributes", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))
		store.assignments[assignment.ID].Status = models.AssignmentSuspended

		svc := newReferralService(store)
		_, err := svc.Register(ctx, registration(assignment.Code, "friend@example.com"))
		if !errors.Is(err, ErrInvalidCode) {
			t.Errorf("err = %v, want ErrInvalidCode", err)
		}
	})

	t.Run("self-referral is rejected", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))

		svc := newReferralService(store)
		_, err := svc.Register(ctx, registration(assignment.Code, "Referrer@Example.com"))
		if !errors.Is(err, ErrSelfReferral) {
			t.Errorf("err = %v, want ErrSelfReferral", err)
		}
	})

	t.Run("repeat registration for the same email counts once", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))

		svc := newReferralService(store)
		evt := registration(assignment.Code, "friend@example.com")
		first, err := svc.Register(ctx, evt)
		if err != nil {
			t.Fatalf("first Register: %v", err)
		}
		second, err := svc.Register(ctx, evt)
		if err != nil {
			t.Fatalf("second Register: %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("second registration created a new referral")
		}
		if got := store.assignments[assignment.ID].TotalReferrals; got != 1 {
			t.Errorf("totalReferrals = %d, want 1", got)
		}
	})

	t.Run("first code wins when a second code is presented later", func(t *testing.T) {
		store := newMemStore()
		_, first := seedAffiliate(store, percentagePolicy(10))

		otherProfile := &models.Profile{
			ID:       primitive.NewObjectID(),
			Name:     "Other",
			Kind:     models.ProfileKindAffiliate,
			IsActive: true,
			Policy:   percentagePolicy(10),
		}
		store.profiles[otherProfile.ID] = otherProfile
		second := &models.Assignment{
			ID:        primitive.NewObjectID(),
			UserID:    primitive.NewObjectID(),
			UserEmail: "other@example.com",
			ProfileID: otherProfile.ID,
			Code:      "REF-OTHERX",
			Status:    models.AssignmentActive,
		}
		store.assignments[second.ID] = second

		svc := newReferralService(store)
		if _, err := svc.Register(ctx, registration(first.Code, "friend@example.com")); err != nil {
			t.Fatalf("first Register: %v", err)
		}
		referral, err := svc.Register(ctx, registration(second.Code, "friend@example.com"))
		if err != nil {
			t.Fatalf("second Register: %v", err)
		}
		if referral.AssignmentID != first.ID {
			t.Errorf("referral moved to assignment %s, want original %s", referral.AssignmentID.Hex(), first.ID.Hex())
		}
	})
}

func TestTrackClick(t *testing.T) {
	ctx := context.Background()

	t.Run("increments the click counter", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))

		svc := newReferralService(store)
		if _, err := svc.TrackClick(ctx, assignment.Code, "", models.Attribution{}); err != nil {
			t.Fatalf("TrackClick: %v", err)
		}
		if got := store.assignments[assignment.ID].TotalClicks; got != 1 {
			t.Errorf("totalClicks = %d, want 1", got)
		}
	})

	t.Run("click with an invitee email opens a CLICKED referral", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))

		svc := newReferralService(store)
		if _, err := svc.TrackClick(ctx, assignment.Code, "invitee@example.com", models.Attribution{UTMSource: "newsletter"}); err != nil {
			t.Fatalf("TrackClick: %v", err)
		}
		referral, _ := store.GetReferralByEmail(ctx, "invitee@example.com")
		if referral == nil || referral.Status != models.ReferralClicked {
			t.Fatalf("expected CLICKED referral, got %+v", referral)
		}
		// The click is not a referral yet
		if got := store.assignments[assignment.ID].TotalReferrals; got != 0 {
			t.Errorf("totalReferrals = %d, want 0", got)
		}
	})

	t.Run("registration promotes a CLICKED referral and counts it once", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))

		svc := newReferralService(store)
		if _, err := svc.TrackClick(ctx, assignment.Code, "invitee@example.com", models.Attribution{}); err != nil {
			t.Fatalf("TrackClick: %v", err)
		}
		referral, err := svc.Register(ctx, registration(assignment.Code, "invitee@example.com"))
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if referral.Status != models.ReferralRegistered {
			t.Errorf("status = %s, want REGISTERED", referral.Status)
		}
		if got := store.assignments[assignment.ID].TotalReferrals; got != 1 {
			t.Errorf("totalReferrals = %d, want 1", got)
		}
	})

	t.Run("unknown code returns ErrInvalidCode", func(t *testing.T) {
		store := newMemStore()
		svc := newReferralService(store)
		if _, err := svc.TrackClick(ctx, "REF-NOSUCH", "", models.Attribution{}); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("err = %v, want ErrInvalidCode", err)
		}
	})
}
