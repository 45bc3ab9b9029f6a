package services

import (
	"context"
	"errors"
	"testing"

	"github.com/refwise/refwise_backend/models"
)

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves an active code to its merged policy", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))
		override := &models.PolicyOverride{
			Reward: &models.RewardConfig{Type: models.RewardPercentage, Percentage: 25},
		}
		store.assignments[assignment.ID].Override = override

		svc := NewAttributionService(store, store, nil)
		resolved, err := svc.Resolve(ctx, assignment.Code)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if resolved.Policy.Reward.Percentage != 25 {
			t.Errorf("merged percentage = %v, want 25 (override)", resolved.Policy.Reward.Percentage)
		}
	})

	t.Run("deactivated profile fails closed", func(t *testing.T) {
		store := newMemStore()
		profile, assignment := seedAffiliate(store, percentagePolicy(10))
		store.profiles[profile.ID].IsActive = false

		svc := NewAttributionService(store, store, nil)
		if _, err := svc.Resolve(ctx, assignment.Code); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("err = %v, want ErrInvalidCode", err)
		}
	})

	t.Run("closed assignment fails closed", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))
		store.assignments[assignment.ID].Status = models.AssignmentClosed

		svc := NewAttributionService(store, store, nil)
		if _, err := svc.Resolve(ctx, assignment.Code); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("err = %v, want ErrInvalidCode", err)
		}
	})

	t.Run("unknown code fails closed", func(t *testing.T) {
		store := newMemStore()
		svc := NewAttributionService(store, store, nil)
		if _, err := svc.Resolve(ctx, "REF-NOSUCH"); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("err = %v, want ErrInvalidCode", err)
		}
	})
}
