package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/refwise/refwise_backend/models"
)

// AdjustmentService reacts to refunds and chargebacks. It is designed to be
// invoked for every refund in the system; refunds on payments that never
// earned a commission are silent no-ops.
type AdjustmentService struct {
	commissions CommissionStore
	referrals   ReferralStore
	assignments AssignmentStore
	audit       AuditStore
	notifier    Notifier // optional
}

func NewAdjustmentService(commissions CommissionStore, referrals ReferralStore, assignments AssignmentStore, audit AuditStore, notifier Notifier) *AdjustmentService {
	return &AdjustmentService{
		commissions: commissions,
		referrals:   referrals,
		assignments: assignments,
		audit:       audit,
		notifier:    notifier,
	}
}

// HandleRefund corrects the ledger for a refunded payment. Full refunds
// cancel the commission and close the referral; partial refunds shrink the
// payable amount proportionally. A commission that was already paid out is
// only flagged for manual reconciliation, since the money has left the
// system.
func (s *AdjustmentService) HandleRefund(ctx context.Context, evt models.PaymentRefundedEvent) error {
	commission, err := s.commissions.GetByPaymentID(ctx, evt.PaymentID)
	if err != nil {
		return err
	}
	if commission == nil {
		return nil
	}

	logCtx := log.WithFields(log.Fields{
		"paymentId":    evt.PaymentID,
		"commissionId": commission.ID.Hex(),
	})

	if commission.Status == models.CommissionPaid || commission.Status == models.CommissionCredited {
		reason := "refund received after payout, manual reconciliation required"
		if err := s.commissions.MarkAdjusted(ctx, commission.ID, reason); err != nil {
			return err
		}
		logCtx.Warn("Refund on a paid commission flagged for manual review")
		return nil
	}

	if evt.IsFullRefund {
		return s.cancelForRefund(ctx, commission, "full refund")
	}

	if commission.BaseAmount <= 0 {
		return nil
	}
	refundRatio := MinorUnitsToAmount(evt.RefundedAmount) / commission.BaseAmount
	if refundRatio > 1 {
		refundRatio = 1
	}
	adjusted := RoundCents(commission.TotalAmount * (1 - refundRatio))

	if err := s.commissions.SetAdjustedAmount(ctx, commission.ID, adjusted); err != nil {
		return err
	}
	// A qualified row already contributed to totalEarned; correct it by
	// the difference so the counter tracks what is actually owed.
	if commission.Status == models.CommissionQualified {
		delta := adjusted - commission.PayableAmount()
		if delta != 0 {
			if err := s.assignments.AddEarned(ctx, commission.AssignmentID, delta); err != nil {
				logCtx.WithError(err).Error("Failed to correct totalEarned after partial refund")
			}
		}
	}
	logCtx.WithField("adjustedAmount", adjusted).Info("Commission adjusted for partial refund")
	return nil
}

// HandleChargeback treats a dispute as suspected abuse: the commission is
// cancelled whatever state it is in, the referral is marked FRAUDULENT and
// an immutable audit entry records the event.
func (s *AdjustmentService) HandleChargeback(ctx context.Context, evt models.PaymentChargedBackEvent) error {
	commission, err := s.commissions.GetByPaymentID(ctx, evt.PaymentID)
	if err != nil {
		return err
	}
	if commission == nil {
		return nil
	}

	cancelled, err := s.commissions.Cancel(ctx, commission.ID,
		[]models.CommissionStatus{
			models.CommissionPending,
			models.CommissionQualified,
			models.CommissionPaid,
			models.CommissionCredited,
			models.CommissionAdjusted,
		}, "chargeback")
	if err != nil {
		return err
	}
	if cancelled && commission.Status == models.CommissionQualified {
		if err := s.assignments.AddEarned(ctx, commission.AssignmentID, -commission.PayableAmount()); err != nil {
			log.WithError(err).Error("Failed to reverse totalEarned after chargeback")
		}
	}

	if _, err := s.referrals.TransitionStatus(ctx, commission.ReferralID,
		[]models.ReferralStatus{
			models.ReferralClicked,
			models.ReferralRegistered,
			models.ReferralConverted,
			models.ReferralQualified,
			models.ReferralRefunded,
			models.ReferralCancelled,
		}, models.ReferralFraudulent); err != nil {
		log.WithError(err).Error("Failed to mark referral fraudulent")
	}

	entry := &models.AuditLog{
		EntryID: uuid.NewString(),
		Actor:   "payment-provider",
		Action:  models.AuditChargebackDetected,
		Metadata: map[string]interface{}{
			"paymentId":    evt.PaymentID,
			"commissionId": commission.ID.Hex(),
			"referralId":   commission.ReferralID.Hex(),
			"amount":       commission.PayableAmount(),
		},
		CreatedAt: time.Now(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		log.WithError(err).Error("Failed to append chargeback audit entry")
	}

	log.WithFields(log.Fields{
		"paymentId":    evt.PaymentID,
		"commissionId": commission.ID.Hex(),
	}).Warn("Chargeback processed, commission cancelled and referral marked fraudulent")
	return nil
}

// cancelForRefund cancels a not-yet-paid commission and closes its
// referral as REFUNDED. Historical amounts stay on the row.
func (s *AdjustmentService) cancelForRefund(ctx context.Context, commission *models.Commission, reason string) error {
	cancelled, err := s.commissions.Cancel(ctx, commission.ID,
		[]models.CommissionStatus{models.CommissionPending, models.CommissionQualified, models.CommissionAdjusted},
		reason)
	if err != nil {
		return err
	}
	if !cancelled {
		return nil
	}

	if commission.Status == models.CommissionQualified {
		if err := s.assignments.AddEarned(ctx, commission.AssignmentID, -commission.PayableAmount()); err != nil {
			log.WithError(err).Error("Failed to reverse totalEarned after full refund")
		}
	}

	if _, err := s.referrals.TransitionStatus(ctx, commission.ReferralID,
		[]models.ReferralStatus{
			models.ReferralClicked,
			models.ReferralRegistered,
			models.ReferralConverted,
			models.ReferralQualified,
		}, models.ReferralRefunded); err != nil {
		log.WithError(err).Error("Failed to mark referral refunded")
	}

	log.WithFields(log.Fields{
		"commissionId": commission.ID.Hex(),
		"reason":       reason,
	}).Info("Commission cancelled")
	return nil
}
