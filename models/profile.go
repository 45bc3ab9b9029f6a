package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProfileKind determines what the reward physically is: a one-time bill
// credit for regular customers or a recurring cash payout for affiliates.
type ProfileKind string

const (
	ProfileKindCustomer  ProfileKind = "CUSTOMER"
	ProfileKindAffiliate ProfileKind = "AFFILIATE"
)

// RewardType selects how the commission amount is computed.
type RewardType string

const (
	RewardPercentage RewardType = "PERCENTAGE"
	RewardFixed      RewardType = "FIXED"
	RewardHybrid     RewardType = "HYBRID"
)

// RewardConfig describes the base reward of a policy.
type RewardConfig struct {
	Type        RewardType `json:"type" bson:"type" validate:"required,oneof=PERCENTAGE FIXED HYBRID"`
	Percentage  float64    `json:"percentage" bson:"percentage" validate:"gte=0,lte=100"`
	FixedAmount float64    `json:"fixedAmount" bson:"fixedAmount" validate:"gte=0"`
}

// QualificationConfig controls when a referral/commission counts as earned.
type QualificationConfig struct {
	MinReferrals    int `json:"minReferrals" bson:"minReferrals" validate:"gte=0"`
	GracePeriodDays int `json:"gracePeriodDays" bson:"gracePeriodDays" validate:"gte=0"`
}

// PayoutConfig holds payout constraints for the assignment owner.
type PayoutConfig struct {
	MinThreshold float64 `json:"minThreshold" bson:"minThreshold" validate:"gte=0"`
}

// LimitsConfig caps how much an assignment can earn.
type LimitsConfig struct {
	MaxMonthlyCommission float64 `json:"maxMonthlyCommission" bson:"maxMonthlyCommission" validate:"gte=0"`
}

// Tier grants a better percentage once the referrer has converted enough
// people. Tiers are ordered by MinReferrals ascending.
type Tier struct {
	MinReferrals int     `json:"minReferrals" bson:"minReferrals" validate:"gte=0"`
	Percentage   float64 `json:"percentage" bson:"percentage" validate:"gte=0,lte=100"`
}

// Policy is the full reward configuration of a profile.
type Policy struct {
	Reward        RewardConfig        `json:"reward" bson:"reward"`
	Qualification QualificationConfig `json:"qualification" bson:"qualification"`
	Payout        PayoutConfig        `json:"payout" bson:"payout"`
	Limits        LimitsConfig        `json:"limits" bson:"limits"`
	Tiers         []Tier              `json:"tiers,omitempty" bson:"tiers,omitempty"`
}

// PolicyOverride is a partial policy merged over a profile's base policy,
// field group by field group. A nil group falls through to the base.
type PolicyOverride struct {
	Reward        *RewardConfig        `json:"reward,omitempty" bson:"reward,omitempty"`
	Qualification *QualificationConfig `json:"qualification,omitempty" bson:"qualification,omitempty"`
	Payout        *PayoutConfig        `json:"payout,omitempty" bson:"payout,omitempty"`
	Limits        *LimitsConfig        `json:"limits,omitempty" bson:"limits,omitempty"`
	Tiers         []Tier               `json:"tiers,omitempty" bson:"tiers,omitempty"`
}

// Profile is a named, reusable reward-policy template managed by admins.
type Profile struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name" validate:"required"`
	Kind      ProfileKind        `json:"kind" bson:"kind" validate:"required,oneof=CUSTOMER AFFILIATE"`
	IsActive  bool               `json:"isActive" bson:"isActive"`
	Policy    Policy             `json:"policy" bson:"policy"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}
