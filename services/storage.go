package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/models"
)

// Storage interfaces consumed by the service layer and implemented on Mongo
// by the repositories package. Lookup methods return (nil, nil) when no
// record matches; a non-nil error always means the store itself failed.
// Insert methods return ErrDuplicate when a uniqueness constraint rejects
// the document, which is how duplicate event delivery becomes a detectable
// conflict instead of a silent double-count.

type ProfileStore interface {
	GetProfile(ctx context.Context, id primitive.ObjectID) (*models.Profile, error)
	InsertProfile(ctx context.Context, p *models.Profile) error
	UpdateProfile(ctx context.Context, p *models.Profile) error
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	DeleteProfile(ctx context.Context, id primitive.ObjectID) error
}

type AssignmentStore interface {
	GetAssignment(ctx context.Context, id primitive.ObjectID) (*models.Assignment, error)
	GetAssignmentByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Assignment, error)
	// FindActiveByCode matches either the code or the custom slug, and only
	// assignments in status ACTIVE.
	FindActiveByCode(ctx context.Context, code string) (*models.Assignment, error)
	InsertAssignment(ctx context.Context, a *models.Assignment) error
	SetAssignmentStatus(ctx context.Context, id primitive.ObjectID, status models.AssignmentStatus) error
	CountByProfile(ctx context.Context, profileID primitive.ObjectID) (int64, error)

	// Counter mutations, all $inc underneath, never read-modify-write.
	IncrementClicks(ctx context.Context, id primitive.ObjectID) error
	IncrementReferrals(ctx context.Context, id primitive.ObjectID) error
	IncrementConverted(ctx context.Context, id primitive.ObjectID) error
	AddEarned(ctx context.Context, id primitive.ObjectID, amount float64) error
	AddPaidOut(ctx context.Context, id primitive.ObjectID, amount float64) error
}

type ReferralStore interface {
	GetReferral(ctx context.Context, id primitive.ObjectID) (*models.Referral, error)
	GetReferralByEmail(ctx context.Context, email string) (*models.Referral, error)
	// FindActiveByUserID returns the referral linked to the given user that
	// is not in a terminal state, if any.
	FindActiveByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Referral, error)
	InsertReferral(ctx context.Context, r *models.Referral) error
	// LinkUser attaches the referred user id and promotes the row to
	// REGISTERED. Safe to call on an already linked row.
	LinkUser(ctx context.Context, id primitive.ObjectID, userID primitive.ObjectID) error
	// TransitionStatus moves the referral from one of the given statuses to
	// the target and reports whether the guard matched.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from []models.ReferralStatus, to models.ReferralStatus) (bool, error)
}

type CommissionStore interface {
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Commission, error)
	InsertCommission(ctx context.Context, c *models.Commission) error
	CountForReferral(ctx context.Context, referralID primitive.ObjectID) (int64, error)
	// SumForAssignmentSince totals non-cancelled commissions created at or
	// after the given instant, using the adjusted amount where present.
	SumForAssignmentSince(ctx context.Context, assignmentID primitive.ObjectID, since time.Time) (float64, error)
	// FindDuePending returns PENDING rows with qualifiesAt <= now.
	FindDuePending(ctx context.Context, now time.Time, limit int64) ([]models.Commission, error)
	// MarkQualified promotes a row that is still PENDING and reports
	// whether this call performed the transition.
	MarkQualified(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	// Cancel moves a row in one of the given statuses to CANCELLED and
	// reports whether the guard matched. The amount fields are untouched.
	Cancel(ctx context.Context, id primitive.ObjectID, from []models.CommissionStatus, reason string) (bool, error)
	MarkAdjusted(ctx context.Context, id primitive.ObjectID, reason string) error
	SetAdjustedAmount(ctx context.Context, id primitive.ObjectID, amount float64) error
	MarkPaidOut(ctx context.Context, id primitive.ObjectID, status models.CommissionStatus, now time.Time) error
	ListByAssignment(ctx context.Context, assignmentID primitive.ObjectID, page, limit int64) ([]models.Commission, int64, error)
	FindQualifiedByAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Commission, error)
	// SumByStatus aggregates payable amounts per status for the dashboard.
	SumByStatus(ctx context.Context, assignmentID primitive.ObjectID) (map[models.CommissionStatus]float64, error)
}

type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, page, limit int64) ([]models.AuditLog, int64, error)
}

type PayoutStore interface {
	InsertPayoutRequest(ctx context.Context, p *models.PayoutRequest) error
	GetPayoutRequest(ctx context.Context, id primitive.ObjectID) (*models.PayoutRequest, error)
	FindPendingByAssignment(ctx context.Context, assignmentID primitive.ObjectID) (*models.PayoutRequest, error)
	// MarkProcessed settles a pending request and reports whether it was
	// still pending.
	MarkProcessed(ctx context.Context, id primitive.ObjectID, status string, adminID primitive.ObjectID, note string, now time.Time) (bool, error)
}
