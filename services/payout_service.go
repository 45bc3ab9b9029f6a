package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/models"
)

// PayoutService tracks payout requests against the qualified balance.
// Moving actual money happens on an external payout rail; this service only
// validates the threshold, records the request and settles the ledger rows
// once an operator confirms the transfer.
type PayoutService struct {
	payouts     PayoutStore
	assignments AssignmentStore
	profiles    ProfileStore
	commissions CommissionStore
	audit       AuditStore
}

func NewPayoutService(payouts PayoutStore, assignments AssignmentStore, profiles ProfileStore, commissions CommissionStore, audit AuditStore) *PayoutService {
	return &PayoutService{
		payouts:     payouts,
		assignments: assignments,
		profiles:    profiles,
		commissions: commissions,
		audit:       audit,
	}
}

// Request opens a payout request for the referrer's available balance
// (totalEarned minus totalPaidOut), provided it meets the policy's minimum
// threshold and no other request is open.
func (s *PayoutService) Request(ctx context.Context, userID primitive.ObjectID) (*models.PayoutRequest, error) {
	assignment, err := s.assignments.GetAssignmentByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrNotFound
	}

	profile, err := s.profiles.GetProfile(ctx, assignment.ProfileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	policy := EffectivePolicy(profile.Policy, assignment.Override)

	available := RoundCents(assignment.TotalEarned - assignment.TotalPaidOut)
	if available < policy.Payout.MinThreshold || available <= 0 {
		return nil, ErrBelowPayoutThreshold
	}

	pending, err := s.payouts.FindPendingByAssignment(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, ErrPayoutPending
	}

	request := &models.PayoutRequest{
		ID:           primitive.NewObjectID(),
		Reference:    uuid.NewString(),
		AssignmentID: assignment.ID,
		UserID:       userID,
		Amount:       available,
		Status:       models.PayoutPending,
		CreatedAt:    time.Now(),
	}
	if err := s.payouts.InsertPayoutRequest(ctx, request); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, userID.Hex(), models.AuditPayoutRequested, map[string]interface{}{
		"payoutRequestId": request.ID.Hex(),
		"reference":       request.Reference,
		"amount":          request.Amount,
	})
	return request, nil
}

// Process settles a pending payout request. Approval marks the
// assignment's QUALIFIED commissions as PAID (CREDITED for customer-kind
// profiles) and moves the amount to totalPaidOut; rejection just closes the
// request.
func (s *PayoutService) Process(ctx context.Context, requestID, adminID primitive.ObjectID, approve bool, note string) (*models.PayoutRequest, error) {
	request, err := s.payouts.GetPayoutRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrNotFound
	}

	status := models.PayoutRejected
	if approve {
		status = models.PayoutProcessed
	}
	now := time.Now()
	settled, err := s.payouts.MarkProcessed(ctx, requestID, status, adminID, note, now)
	if err != nil {
		return nil, err
	}
	if !settled {
		// Already handled by another operator; return current state.
		return s.payouts.GetPayoutRequest(ctx, requestID)
	}

	if approve {
		if err := s.settleCommissions(ctx, request, now); err != nil {
			return nil, err
		}
		if err := s.assignments.AddPaidOut(ctx, request.AssignmentID, request.Amount); err != nil {
			log.WithError(err).Error("Failed to increment totalPaidOut")
		}
	}

	s.appendAudit(ctx, adminID.Hex(), models.AuditPayoutProcessed, map[string]interface{}{
		"payoutRequestId": request.ID.Hex(),
		"reference":       request.Reference,
		"amount":          request.Amount,
		"approved":        approve,
	})
	return s.payouts.GetPayoutRequest(ctx, requestID)
}

func (s *PayoutService) settleCommissions(ctx context.Context, request *models.PayoutRequest, now time.Time) error {
	assignment, err := s.assignments.GetAssignment(ctx, request.AssignmentID)
	if err != nil || assignment == nil {
		return err
	}
	profile, err := s.profiles.GetProfile(ctx, assignment.ProfileID)
	if err != nil || profile == nil {
		return err
	}

	paidStatus := models.CommissionPaid
	if profile.Kind == models.ProfileKindCustomer {
		paidStatus = models.CommissionCredited
	}

	qualified, err := s.commissions.FindQualifiedByAssignment(ctx, request.AssignmentID)
	if err != nil {
		return err
	}
	for i := range qualified {
		if err := s.commissions.MarkPaidOut(ctx, qualified[i].ID, paidStatus, now); err != nil {
			log.WithError(err).WithField("commissionId", qualified[i].ID.Hex()).
				Error("Failed to mark commission paid")
		}
	}
	return nil
}

func (s *PayoutService) appendAudit(ctx context.Context, actor, action string, metadata interface{}) {
	entry := &models.AuditLog{
		EntryID:   uuid.NewString(),
		Actor:     actor,
		Action:    action,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		log.WithError(err).Error("Failed to append payout audit entry")
	}
}
