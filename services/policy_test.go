package services

import (
	"testing"

	"github.com/refwise/refwise_backend/models"
)

func TestEffectivePolicy(t *testing.T) {
	base := models.Policy{
		Reward: models.RewardConfig{
			Type:       models.RewardPercentage,
			Percentage: 10,
		},
		Qualification: models.QualificationConfig{
			GracePeriodDays: 14,
		},
		Payout: models.PayoutConfig{MinThreshold: 50},
		Limits: models.LimitsConfig{MaxMonthlyCommission: 500},
		Tiers: []models.Tier{
			{MinReferrals: 10, Percentage: 15},
		},
	}

	t.Run("nil override returns base unchanged", func(t *testing.T) {
		got := EffectivePolicy(base, nil)
		if got.Reward.Percentage != 10 || got.Qualification.GracePeriodDays != 14 {
			t.Errorf("base policy changed: %+v", got)
		}
	})

	t.Run("present group replaces base group entirely", func(t *testing.T) {
		override := &models.PolicyOverride{
			Reward: &models.RewardConfig{
				Type:        models.RewardFixed,
				FixedAmount: 25,
			},
		}
		got := EffectivePolicy(base, override)
		if got.Reward.Type != models.RewardFixed {
			t.Errorf("reward type = %s, want FIXED", got.Reward.Type)
		}
		// The base percentage does not leak through a replaced group
		if got.Reward.Percentage != 0 {
			t.Errorf("percentage = %v, want 0", got.Reward.Percentage)
		}
		// Untouched groups fall through
		if got.Payout.MinThreshold != 50 {
			t.Errorf("minThreshold = %v, want 50", got.Payout.MinThreshold)
		}
	})

	t.Run("override tiers replace base tiers", func(t *testing.T) {
		override := &models.PolicyOverride{
			Tiers: []models.Tier{{MinReferrals: 5, Percentage: 20}},
		}
		got := EffectivePolicy(base, override)
		if len(got.Tiers) != 1 || got.Tiers[0].Percentage != 20 {
			t.Errorf("tiers = %+v, want single 20%% tier", got.Tiers)
		}
	})
}

func TestSelectTierRate(t *testing.T) {
	policy := models.Policy{
		Reward: models.RewardConfig{Type: models.RewardPercentage, Percentage: 10},
		Tiers: []models.Tier{
			{MinReferrals: 5, Percentage: 12},
			{MinReferrals: 20, Percentage: 15},
		},
	}

	cases := []struct {
		name      string
		converted int
		want      float64
	}{
		{"below first tier uses base rate", 4, 10},
		{"at first tier threshold", 5, 12},
		{"between tiers keeps lower tier", 19, 12},
		{"at top tier threshold", 20, 15},
		{"far beyond top tier", 200, 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SelectTierRate(policy, tc.converted); got != tc.want {
				t.Errorf("SelectTierRate(%d) = %v, want %v", tc.converted, got, tc.want)
			}
		})
	}

	t.Run("no tiers falls back to base percentage", func(t *testing.T) {
		bare := models.Policy{Reward: models.RewardConfig{Type: models.RewardPercentage, Percentage: 8}}
		if got := SelectTierRate(bare, 100); got != 8 {
			t.Errorf("rate = %v, want 8", got)
		}
	})
}

func TestComputeReward(t *testing.T) {
	t.Run("percentage", func(t *testing.T) {
		total, rate, fixed := ComputeReward(models.RewardConfig{Type: models.RewardPercentage, Percentage: 15}, 15, 100)
		if total != 15 || rate != 15 || fixed != 0 {
			t.Errorf("got (%v, %v, %v), want (15, 15, 0)", total, rate, fixed)
		}
	})

	t.Run("fixed records zero rate", func(t *testing.T) {
		total, rate, fixed := ComputeReward(models.RewardConfig{Type: models.RewardFixed, FixedAmount: 7.5}, 15, 100)
		if total != 7.5 || rate != 0 || fixed != 7.5 {
			t.Errorf("got (%v, %v, %v), want (7.5, 0, 7.5)", total, rate, fixed)
		}
	})

	t.Run("hybrid sums both components", func(t *testing.T) {
		total, rate, fixed := ComputeReward(models.RewardConfig{Type: models.RewardHybrid, Percentage: 10, FixedAmount: 5}, 10, 100)
		if total != 15 || rate != 10 || fixed != 5 {
			t.Errorf("got (%v, %v, %v), want (15, 10, 5)", total, rate, fixed)
		}
	})

	t.Run("result is rounded to cents", func(t *testing.T) {
		total, _, _ := ComputeReward(models.RewardConfig{Type: models.RewardPercentage, Percentage: 33.33}, 33.33, 9.99)
		if total != 3.33 {
			t.Errorf("total = %v, want 3.33", total)
		}
	})
}

func TestMinorUnitsToAmount(t *testing.T) {
	if got := MinorUnitsToAmount(9999); got != 99.99 {
		t.Errorf("MinorUnitsToAmount(9999) = %v, want 99.99", got)
	}
	if got := MinorUnitsToAmount(100); got != 1 {
		t.Errorf("MinorUnitsToAmount(100) = %v, want 1", got)
	}
}
