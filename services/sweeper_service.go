package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/refwise/refwise_backend/models"
)

const sweepBatchSize = 500

// QualificationMailer notifies a referrer that a reward became payable.
// Delivery is best effort and never blocks the sweep.
type QualificationMailer interface {
	SendCommissionQualified(toEmail string, amount float64, currency string) error
}

// SweeperService promotes PENDING commissions past their grace period to
// QUALIFIED. It is the single point where money becomes counted as earned.
// Every row transition is guarded on the PENDING status, so overlapping
// sweeps and re-runs never double-add.
type SweeperService struct {
	commissions CommissionStore
	referrals   ReferralStore
	assignments AssignmentStore
	mailer      QualificationMailer // optional
	notifier    Notifier            // optional
}

func NewSweeperService(commissions CommissionStore, referrals ReferralStore, assignments AssignmentStore, mailer QualificationMailer, notifier Notifier) *SweeperService {
	return &SweeperService{
		commissions: commissions,
		referrals:   referrals,
		assignments: assignments,
		mailer:      mailer,
		notifier:    notifier,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *SweeperService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithField("interval", interval).Info("Qualification sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info("Qualification sweeper stopped")
			return
		case <-ticker.C:
			qualified, cancelled, err := s.RunOnce(ctx)
			if err != nil {
				log.WithError(err).Error("Qualification sweep failed")
				continue
			}
			if qualified > 0 || cancelled > 0 {
				log.WithFields(log.Fields{
					"qualified": qualified,
					"cancelled": cancelled,
				}).Info("Qualification sweep completed")
			}
		}
	}
}

// RunOnce processes all due PENDING commissions and returns how many were
// qualified and how many were cancelled because their referral aborted.
func (s *SweeperService) RunOnce(ctx context.Context) (qualified, cancelled int, err error) {
	now := time.Now()
	due, err := s.commissions.FindDuePending(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, 0, err
	}

	for i := range due {
		commission := &due[i]
		referral, err := s.referrals.GetReferral(ctx, commission.ReferralID)
		if err != nil {
			log.WithError(err).WithField("commissionId", commission.ID.Hex()).
				Error("Sweep: failed to load referral")
			continue
		}

		if referral == nil || referral.Status.IsTerminal() {
			ok, err := s.commissions.Cancel(ctx, commission.ID,
				[]models.CommissionStatus{models.CommissionPending},
				"referral aborted before qualification")
			if err != nil {
				log.WithError(err).WithField("commissionId", commission.ID.Hex()).
					Error("Sweep: failed to cancel commission")
				continue
			}
			if ok {
				cancelled++
			}
			continue
		}

		moved, err := s.commissions.MarkQualified(ctx, commission.ID, now)
		if err != nil {
			log.WithError(err).WithField("commissionId", commission.ID.Hex()).
				Error("Sweep: failed to qualify commission")
			continue
		}
		if !moved {
			// Another sweep instance got here first.
			continue
		}
		qualified++

		if err := s.assignments.AddEarned(ctx, commission.AssignmentID, commission.PayableAmount()); err != nil {
			log.WithError(err).WithField("commissionId", commission.ID.Hex()).
				Error("Sweep: failed to add to totalEarned")
		}

		if _, err := s.referrals.TransitionStatus(ctx, referral.ID,
			[]models.ReferralStatus{models.ReferralConverted}, models.ReferralQualified); err != nil {
			log.WithError(err).WithField("referralId", referral.ID.Hex()).
				Error("Sweep: failed to qualify referral")
		}

		s.notifyQualified(ctx, commission)
	}
	return qualified, cancelled, nil
}

func (s *SweeperService) notifyQualified(ctx context.Context, commission *models.Commission) {
	assignment, err := s.assignments.GetAssignment(ctx, commission.AssignmentID)
	if err != nil || assignment == nil {
		return
	}
	if s.notifier != nil {
		s.notifier.NotifyCommissionEvent(assignment.UserID, "commission_qualified", commission)
	}
	if s.mailer != nil && assignment.UserEmail != "" {
		if err := s.mailer.SendCommissionQualified(assignment.UserEmail, commission.PayableAmount(), commission.Currency); err != nil {
			log.WithError(err).WithField("email", assignment.UserEmail).
				Error("Failed to send qualification email")
		}
	}
}
