package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PayoutRequest asks for the qualified balance of an assignment to be paid
// out. The actual transfer happens on an external payout rail; this service
// only tracks the request and marks the covered ledger rows.
type PayoutRequest struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Reference    string              `bson:"reference" json:"reference"` // uuid handed to the payout rail
	AssignmentID primitive.ObjectID  `bson:"assignmentId" json:"assignmentId"`
	UserID       primitive.ObjectID  `bson:"userId" json:"userId"`
	Amount       float64             `bson:"amount" json:"amount"`
	Status       string              `bson:"status" json:"status"` // "pending", "processed", "rejected"
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	ProcessedAt  *time.Time          `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	AdminID      *primitive.ObjectID `bson:"adminId,omitempty" json:"adminId,omitempty"`
	AdminNote    string              `bson:"adminNote,omitempty" json:"adminNote,omitempty"`
}

const (
	PayoutPending   = "pending"
	PayoutProcessed = "processed"
	PayoutRejected  = "rejected"
)
