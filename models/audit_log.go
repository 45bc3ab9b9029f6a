package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Audit actions recorded by the core. The audit log is append-only; nothing
// in this service updates or deletes entries.
const (
	AuditChargebackDetected  = "CHARGEBACK_DETECTED"
	AuditCommissionCancelled = "COMMISSION_CANCELLED"
	AuditAssignmentSuspended = "ASSIGNMENT_SUSPENDED"
	AuditPayoutRequested     = "PAYOUT_REQUESTED"
	AuditPayoutProcessed     = "PAYOUT_PROCESSED"
)

// AuditLog records one sensitive state transition for compliance review.
type AuditLog struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	EntryID   string             `json:"entryId" bson:"entryId"` // uuid, stable across re-serialization
	Actor     string             `json:"actor" bson:"actor"`     // "system", payment provider name, or admin user id
	Action    string             `json:"action" bson:"action"`
	Metadata  interface{}        `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
