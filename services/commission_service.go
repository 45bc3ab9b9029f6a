package services

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/models"
)

// Notifier pushes commission lifecycle events to connected dashboards.
type Notifier interface {
	NotifyCommissionEvent(userID primitive.ObjectID, event string, data interface{}) error
}

// CommissionService turns PaymentSucceeded events into idempotent ledger
// rows under the effective policy. Most payments carry no referral at all;
// those return (nil, nil) and are perfectly normal.
type CommissionService struct {
	attribution *AttributionService
	referralSvc *ReferralService
	profiles    ProfileStore
	assignments AssignmentStore
	referrals   ReferralStore
	commissions CommissionStore
	notifier    Notifier // optional
}

func NewCommissionService(
	attribution *AttributionService,
	referralSvc *ReferralService,
	profiles ProfileStore,
	assignments AssignmentStore,
	referrals ReferralStore,
	commissions CommissionStore,
	notifier Notifier,
) *CommissionService {
	return &CommissionService{
		attribution: attribution,
		referralSvc: referralSvc,
		profiles:    profiles,
		assignments: assignments,
		referrals:   referrals,
		commissions: commissions,
		notifier:    notifier,
	}
}

// RecordPayment processes one successful payment. Duplicate delivery of the
// same paymentId returns the existing row without touching any counter;
// this holds under concurrent delivery because the commissions collection
// carries a unique index on paymentId.
func (s *CommissionService) RecordPayment(ctx context.Context, evt models.PaymentSucceededEvent) (*models.Commission, error) {
	logCtx := log.WithFields(log.Fields{
		"paymentId": evt.PaymentID,
		"userId":    evt.UserID,
	})

	// Idempotency gate.
	existing, err := s.commissions.GetByPaymentID(ctx, evt.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logCtx.Debug("Payment already processed, returning existing commission")
		return existing, nil
	}

	referral, err := s.resolveReferral(ctx, evt)
	if err != nil {
		return nil, err
	}
	if referral == nil || referral.Status.IsTerminal() {
		return nil, nil
	}

	assignment, err := s.assignments.GetAssignment(ctx, referral.AssignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil || assignment.Status != models.AssignmentActive {
		logCtx.Debug("Referral's assignment is not active, skipping commission")
		return nil, nil
	}

	profile, err := s.profiles.GetProfile(ctx, assignment.ProfileID)
	if err != nil {
		return nil, err
	}
	if profile == nil || !profile.IsActive {
		logCtx.Warn("Assignment references an inactive profile, skipping commission")
		return nil, nil
	}
	policy := EffectivePolicy(profile.Policy, assignment.Override)

	// CUSTOMER rewards are a one-time signup credit: any prior commission
	// under this referral means the referred user's first payment was
	// already rewarded.
	if profile.Kind == models.ProfileKindCustomer {
		n, err := s.commissions.CountForReferral(ctx, referral.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			logCtx.Debug("Customer referral already rewarded, skipping")
			return nil, nil
		}
	}

	baseAmount := MinorUnitsToAmount(evt.Amount)
	rate := SelectTierRate(policy, assignment.TotalConverted)
	total, appliedRate, fixed := ComputeReward(policy.Reward, rate, baseAmount)
	if total <= 0 {
		return nil, nil
	}

	now := time.Now()
	if policy.Limits.MaxMonthlyCommission > 0 {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		earnedThisMonth, err := s.commissions.SumForAssignmentSince(ctx, assignment.ID, monthStart)
		if err != nil {
			return nil, err
		}
		headroom := policy.Limits.MaxMonthlyCommission - earnedThisMonth
		if headroom <= 0 {
			logCtx.WithField("cap", policy.Limits.MaxMonthlyCommission).
				Info("Monthly commission cap reached, no commission created")
			return nil, nil
		}
		if total > headroom {
			total = RoundCents(headroom)
			logCtx.WithField("clampedTo", total).Info("Commission clamped to monthly cap headroom")
		}
	}

	qualifiesAt := now
	if profile.Kind == models.ProfileKindAffiliate {
		qualifiesAt = now.Add(time.Duration(policy.Qualification.GracePeriodDays) * 24 * time.Hour)
	}

	commission := &models.Commission{
		ID:             primitive.NewObjectID(),
		AssignmentID:   assignment.ID,
		ReferralID:     referral.ID,
		PaymentID:      evt.PaymentID,
		InvoiceID:      evt.InvoiceID,
		BaseAmount:     baseAmount,
		CommissionRate: appliedRate,
		FixedAmount:    fixed,
		TotalAmount:    total,
		Currency:       evt.Currency,
		Status:         models.CommissionPending,
		QualifiesAt:    qualifiesAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.commissions.InsertCommission(ctx, commission); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Concurrent duplicate delivery: the other insert won.
			return s.commissions.GetByPaymentID(ctx, evt.PaymentID)
		}
		return nil, err
	}

	// First conversion promotes the referral and counts it. The guarded
	// transition makes sure a second payment never re-increments.
	moved, err := s.referrals.TransitionStatus(ctx, referral.ID,
		[]models.ReferralStatus{models.ReferralRegistered, models.ReferralClicked},
		models.ReferralConverted)
	if err != nil {
		logCtx.WithError(err).Error("Failed to promote referral to CONVERTED")
	} else if moved {
		if err := s.assignments.IncrementConverted(ctx, assignment.ID); err != nil {
			logCtx.WithError(err).Error("Failed to increment totalConverted")
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyCommissionEvent(assignment.UserID, "commission_pending", commission)
	}

	logCtx.WithFields(log.Fields{
		"commissionId": commission.ID.Hex(),
		"amount":       commission.TotalAmount,
	}).Info("Commission created")
	return commission, nil
}

// resolveReferral finds the active referral for the paying user, lazily
// synthesizing the registration from the checkout code hint when the
// registration event never arrived. A hint that fails to resolve is not an
// error; the payment simply has no referrer.
func (s *CommissionService) resolveReferral(ctx context.Context, evt models.PaymentSucceededEvent) (*models.Referral, error) {
	if evt.UserID != "" {
		userID, err := primitive.ObjectIDFromHex(evt.UserID)
		if err == nil {
			referral, err := s.referrals.FindActiveByUserID(ctx, userID)
			if err != nil {
				return nil, err
			}
			if referral != nil {
				return referral, nil
			}
		}
	}

	if evt.ReferralCodeHint == "" || evt.UserID == "" || evt.UserEmail == "" {
		return nil, nil
	}

	referral, err := s.referralSvc.Register(ctx, models.UserRegisteredEvent{
		ReferralCode:   evt.ReferralCodeHint,
		ReferredEmail:  evt.UserEmail,
		ReferredUserID: evt.UserID,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrSelfReferral) || errors.Is(err, ErrNotFound) {
			log.WithFields(log.Fields{
				"paymentId": evt.PaymentID,
				"codeHint":  evt.ReferralCodeHint,
			}).WithError(err).Info("Checkout code hint did not attribute, payment has no referrer")
			return nil, nil
		}
		return nil, err
	}
	return referral, nil
}
