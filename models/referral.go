package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferralStatus tracks one referred person through the funnel. Forward
// transitions are monotonic; REFUNDED, FRAUDULENT and CANCELLED are terminal
// and reachable from any non-terminal state.
type ReferralStatus string

const (
	ReferralClicked    ReferralStatus = "CLICKED"
	ReferralRegistered ReferralStatus = "REGISTERED"
	ReferralConverted  ReferralStatus = "CONVERTED"
	ReferralQualified  ReferralStatus = "QUALIFIED"
	ReferralRefunded   ReferralStatus = "REFUNDED"
	ReferralFraudulent ReferralStatus = "FRAUDULENT"
	ReferralCancelled  ReferralStatus = "CANCELLED"
)

// IsTerminal reports whether the status is one of the abort states.
func (s ReferralStatus) IsTerminal() bool {
	return s == ReferralRefunded || s == ReferralFraudulent || s == ReferralCancelled
}

// Attribution carries where the referred person came from.
type Attribution struct {
	SourceIP    string `json:"sourceIp,omitempty" bson:"sourceIp,omitempty"`
	UTMSource   string `json:"utmSource,omitempty" bson:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty" bson:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty" bson:"utmCampaign,omitempty"`
}

// Referral is one row per referred person, keyed by referred email. The
// email keeps the original attribution forever, even if a different code is
// presented on re-entry.
type Referral struct {
	ID             primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	AssignmentID   primitive.ObjectID  `json:"assignmentId" bson:"assignmentId"`
	ReferredEmail  string              `json:"referredEmail" bson:"referredEmail"`
	ReferredUserID *primitive.ObjectID `json:"referredUserId,omitempty" bson:"referredUserId,omitempty"`
	Status         ReferralStatus      `json:"status" bson:"status"`
	Attribution    Attribution         `json:"attribution,omitempty" bson:"attribution,omitempty"`

	ClickedAt    *time.Time `json:"clickedAt,omitempty" bson:"clickedAt,omitempty"`
	RegisteredAt *time.Time `json:"registeredAt,omitempty" bson:"registeredAt,omitempty"`
	ConvertedAt  *time.Time `json:"convertedAt,omitempty" bson:"convertedAt,omitempty"`
	QualifiedAt  *time.Time `json:"qualifiedAt,omitempty" bson:"qualifiedAt,omitempty"`
	ClosedAt     *time.Time `json:"closedAt,omitempty" bson:"closedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
