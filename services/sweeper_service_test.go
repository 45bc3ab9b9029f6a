package services

import (
	"context"
	"testing"
	"time"

	"github.com/refwise/refwise_backend/models"
)

func TestSweeperRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("qualifies due commissions and credits the balance", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))
		commission := seedCommission(store, assignment.ID, models.CommissionPending, 10)
		store.commissions[commission.ID].QualifiesAt = time.Now().Add(-time.Hour)

		notifier := &recordingNotifier{}
		sweeper := NewSweeperService(store, store, store, nil, notifier)
		qualified, cancelled, err := sweeper.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if qualified != 1 || cancelled != 0 {
			t.Fatalf("got (%d qualified, %d cancelled), want (1, 0)", qualified, cancelled)
		}
		if got := store.commissions[commission.ID].Status; got != models.CommissionQualified {
			t.Errorf("commission status = %s, want QUALIFIED", got)
		}
		if got := store.assignments[assignment.ID].TotalEarned; got != 10 {
			t.Errorf("totalEarned = %v, want 10", got)
		}
		if got := store.referrals[commission.ReferralID].Status; got != models.ReferralQualified {
			t.Errorf("referral status = %s, want QUALIFIED", got)
		}
		if len(notifier.events) != 1 || notifier.events[0] != "commission_qualified" {
			t.Errorf("notifier events = %v, want [commission_qualified]", notifier.events)
		}
	})

	t.Run("running twice never credits twice", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))
		commission := seedCommission(store, assignment.ID, models.CommissionPending, 10)
		store.commissions[commission.ID].QualifiesAt = time.Now().Add(-time.Hour)

		sweeper := NewSweeperService(store, store, store, nil, nil)
		if _, _, err := sweeper.RunOnce(ctx); err != nil {
			t.Fatalf("first RunOnce: %v", err)
		}
		qualified, _, err := sweeper.RunOnce(ctx)
		if err != nil {
			t.Fatalf("second RunOnce: %v", err)
		}
		if qualified != 0 {
			t.Errorf("second sweep qualified %d rows, want 0", qualified)
		}
		if got := store.assignments[assignment.ID].TotalEarned; got != 10 {
			t.Errorf("totalEarned = %v, want 10", got)
		}
	})

	t.Run("not yet due commissions are left alone", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))
		commission := seedCommission(store, assignment.ID, models.CommissionPending, 10)
		store.commissions[commission.ID].QualifiesAt = time.Now().Add(24 * time.Hour)

		sweeper := NewSweeperService(store, store, store, nil, nil)
		qualified, cancelled, err := sweeper.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if qualified != 0 || cancelled != 0 {
			t.Errorf("got (%d, %d), want (0, 0)", qualified, cancelled)
		}
		if got := store.commissions[commission.ID].Status; got != models.CommissionPending {
			t.Errorf("status = %s, want PENDING", got)
		}
	})

	t.Run("aborted referral cancels the pending commission instead", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))
		commission := seedCommission(store, assignment.ID, models.CommissionPending, 10)
		store.commissions[commission.ID].QualifiesAt = time.Now().Add(-time.Hour)
		store.referrals[commission.ReferralID].Status = models.ReferralRefunded

		sweeper := NewSweeperService(store, store, store, nil, nil)
		qualified, cancelled, err := sweeper.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if qualified != 0 || cancelled != 1 {
			t.Fatalf("got (%d qualified, %d cancelled), want (0, 1)", qualified, cancelled)
		}
		if got := store.commissions[commission.ID].Status; got != models.CommissionCancelled {
			t.Errorf("commission status = %s, want CANCELLED", got)
		}
		if got := store.assignments[assignment.ID].TotalEarned; got != 0 {
			t.Errorf("totalEarned = %v, want 0", got)
		}
	})

	t.Run("adjusted amount is what gets credited", func(t *testing.T) {
		store := newMemStore()
		_, assignment := seedAffiliate(store, percentagePolicy(10))
		commission := seedCommission(store, assignment.ID, models.CommissionPending, 10)
		adjusted := 4.0
		row := store.commissions[commission.ID]
		row.QualifiesAt = time.Now().Add(-time.Hour)
		row.AdjustedAmount = &adjusted

		sweeper := NewSweeperService(store, store, store, nil, nil)
		if _, _, err := sweeper.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if got := store.assignments[assignment.ID].TotalEarned; got != 4 {
			t.Errorf("totalEarned = %v, want 4", got)
		}
	})
}
