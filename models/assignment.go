package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus is the lifecycle state of a referrer's assignment.
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "ACTIVE"
	AssignmentSuspended AssignmentStatus = "SUSPENDED"
	AssignmentClosed    AssignmentStatus = "CLOSED"
)

// Assignment binds one user (the referrer) to one profile via a globally
// unique shareable code. At most one assignment exists per user.
type Assignment struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID     primitive.ObjectID `json:"userId" bson:"userId"`
	UserEmail  string             `json:"userEmail" bson:"userEmail"`
	ProfileID  primitive.ObjectID `json:"profileId" bson:"profileId"`
	Code       string             `json:"code" bson:"code"`
	CustomSlug string             `json:"customSlug,omitempty" bson:"customSlug,omitempty"`
	Status     AssignmentStatus   `json:"status" bson:"status"`

	// Per-assignment policy override merged over the profile's base policy.
	Override *PolicyOverride `json:"override,omitempty" bson:"override,omitempty"`

	// Cumulative counters, mutated only via $inc.
	TotalClicks    int     `json:"totalClicks" bson:"totalClicks"`
	TotalReferrals int     `json:"totalReferrals" bson:"totalReferrals"`
	TotalConverted int     `json:"totalConverted" bson:"totalConverted"`
	TotalEarned    float64 `json:"totalEarned" bson:"totalEarned"`
	TotalPaidOut   float64 `json:"totalPaidOut" bson:"totalPaidOut"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
