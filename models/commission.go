package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommissionStatus is the ledger-row lifecycle. Rows are never deleted;
// refunds and chargebacks move them to CANCELLED or ADJUSTED instead.
type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "PENDING"
	CommissionQualified CommissionStatus = "QUALIFIED"
	CommissionPaid      CommissionStatus = "PAID"
	CommissionCredited  CommissionStatus = "CREDITED"
	CommissionCancelled CommissionStatus = "CANCELLED"
	CommissionAdjusted  CommissionStatus = "ADJUSTED"
)

// Commission is one ledger row per rewarded payment, keyed uniquely by the
// payment provider's payment id (the idempotency key).
type Commission struct {
	ID           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AssignmentID primitive.ObjectID `json:"assignmentId" bson:"assignmentId"`
	ReferralID   primitive.ObjectID `json:"referralId" bson:"referralId"`
	PaymentID    string             `json:"paymentId" bson:"paymentId"`
	InvoiceID    string             `json:"invoiceId,omitempty" bson:"invoiceId,omitempty"`

	// BaseAmount is the gross payment in decimal currency units; TotalAmount
	// is the computed reward. AdjustedAmount, once set by a partial refund,
	// overrides TotalAmount everywhere downstream.
	BaseAmount     float64  `json:"baseAmount" bson:"baseAmount"`
	CommissionRate float64  `json:"commissionRate" bson:"commissionRate"`
	FixedAmount    float64  `json:"fixedAmount" bson:"fixedAmount"`
	TotalAmount    float64  `json:"totalAmount" bson:"totalAmount"`
	AdjustedAmount *float64 `json:"adjustedAmount,omitempty" bson:"adjustedAmount,omitempty"`
	Currency       string   `json:"currency" bson:"currency"`

	Status           CommissionStatus `json:"status" bson:"status"`
	QualifiesAt      time.Time        `json:"qualifiesAt" bson:"qualifiesAt"`
	AdjustmentReason string           `json:"adjustmentReason,omitempty" bson:"adjustmentReason,omitempty"`

	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
	QualifiedAt *time.Time `json:"qualifiedAt,omitempty" bson:"qualifiedAt,omitempty"`
	PaidAt      *time.Time `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
}

// PayableAmount returns what this row is currently worth: the adjusted
// amount when a partial refund corrected it, the original total otherwise.
func (c *Commission) PayableAmount() float64 {
	if c.AdjustedAmount != nil {
		return *c.AdjustedAmount
	}
	return c.TotalAmount
}
