package services

import (
	"math"

	"github.com/refwise/refwise_backend/models"
)

// EffectivePolicy merges an assignment's override onto a profile's base
// policy, field group by field group. A present group replaces the base
// group entirely; an absent one falls through. Merging whole groups keeps
// every merged field's provenance obvious: either all of `reward` came from
// the override or none of it did.
func EffectivePolicy(base models.Policy, override *models.PolicyOverride) models.Policy {
	if override == nil {
		return base
	}

	merged := base
	if override.Reward != nil {
		merged.Reward = *override.Reward
	}
	if override.Qualification != nil {
		merged.Qualification = *override.Qualification
	}
	if override.Payout != nil {
		merged.Payout = *override.Payout
	}
	if override.Limits != nil {
		merged.Limits = *override.Limits
	}
	if len(override.Tiers) > 0 {
		merged.Tiers = override.Tiers
	}
	return merged
}

// SelectTierRate picks the percentage for the tier with the highest
// minReferrals that the converted count has reached. With no qualifying
// tier (or no tiers at all) the policy's base percentage applies. The count
// is evaluated before the current payment's conversion is added, so a
// referrer earns the better rate starting with the payment after crossing a
// threshold.
func SelectTierRate(policy models.Policy, totalConverted int) float64 {
	rate := policy.Reward.Percentage
	bestMin := -1
	for _, tier := range policy.Tiers {
		if tier.MinReferrals <= totalConverted && tier.MinReferrals > bestMin {
			bestMin = tier.MinReferrals
			rate = tier.Percentage
		}
	}
	return rate
}

// ComputeReward applies the reward type to the base amount. The returned
// rate is 0 for purely fixed rewards so the ledger row records exactly what
// was applied.
func ComputeReward(reward models.RewardConfig, rate float64, baseAmount float64) (total, appliedRate, fixed float64) {
	switch reward.Type {
	case models.RewardPercentage:
		return RoundCents(baseAmount * rate / 100), rate, 0
	case models.RewardFixed:
		return RoundCents(reward.FixedAmount), 0, reward.FixedAmount
	case models.RewardHybrid:
		return RoundCents(baseAmount*rate/100 + reward.FixedAmount), rate, reward.FixedAmount
	default:
		return 0, 0, 0
	}
}

// RoundCents rounds a decimal currency amount to two places.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// MinorUnitsToAmount converts provider minor units (cents) to decimal
// currency units.
func MinorUnitsToAmount(minor int64) float64 {
	return float64(minor) / 100
}
