package services

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/models"
)

// ReferralService owns the lifecycle of one referred person, from click
// through registration to conversion. Every entry point is safe to call
// more than once for the same person: the referred email is the identity
// key and keeps the original attribution forever.
type ReferralService struct {
	attribution *AttributionService
	referrals   ReferralStore
	assignments AssignmentStore
}

func NewReferralService(attribution *AttributionService, referrals ReferralStore, assignments AssignmentStore) *ReferralService {
	return &ReferralService{
		attribution: attribution,
		referrals:   referrals,
		assignments: assignments,
	}
}

// TrackClick records a visit through a referral link. The click counter
// always moves; a Referral row in CLICKED is created only when the link
// carried an invitee email (invite flows), so registration can later attach
// the user id to it.
func (s *ReferralService) TrackClick(ctx context.Context, code, email string, attr models.Attribution) (*models.Assignment, error) {
	resolved, err := s.attribution.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.assignments.IncrementClicks(ctx, resolved.Assignment.ID); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if email == "" || email == normalizeEmail(resolved.Assignment.UserEmail) {
		return resolved.Assignment, nil
	}

	existing, err := s.referrals.GetReferralByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return resolved.Assignment, nil
	}

	now := time.Now()
	referral := &models.Referral{
		ID:            primitive.NewObjectID(),
		AssignmentID:  resolved.Assignment.ID,
		ReferredEmail: email,
		Status:        models.ReferralClicked,
		Attribution:   attr,
		ClickedAt:     &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.referrals.InsertReferral(ctx, referral); err != nil && err != ErrDuplicate {
		return nil, err
	}
	return resolved.Assignment, nil
}

// Register attributes a newly registered account to a referral code. The
// operation is idempotent for the same (code, email) pair: a referral that
// is already fully linked is returned unchanged, and counters are only
// incremented on the transition that first makes the person a registered
// referral.
func (s *ReferralService) Register(ctx context.Context, evt models.UserRegisteredEvent) (*models.Referral, error) {
	email := normalizeEmail(evt.ReferredEmail)

	resolved, err := s.attribution.Resolve(ctx, evt.ReferralCode)
	if err != nil {
		return nil, err
	}
	assignment := resolved.Assignment

	if email == normalizeEmail(assignment.UserEmail) {
		return nil, ErrSelfReferral
	}

	userID, err := primitive.ObjectIDFromHex(evt.ReferredUserID)
	if err != nil {
		return nil, ErrNotFound
	}

	existing, err := s.referrals.GetReferralByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.completeRegistration(ctx, existing, userID)
	}

	now := time.Now()
	referral := &models.Referral{
		ID:             primitive.NewObjectID(),
		AssignmentID:   assignment.ID,
		ReferredEmail:  email,
		ReferredUserID: &userID,
		Status:         models.ReferralRegistered,
		Attribution: models.Attribution{
			SourceIP:    evt.SourceIP,
			UTMSource:   evt.UTMSource,
			UTMMedium:   evt.UTMMedium,
			UTMCampaign: evt.UTMCampaign,
		},
		RegisteredAt: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.referrals.InsertReferral(ctx, referral); err != nil {
		if err == ErrDuplicate {
			// Concurrent registration for the same email: the first insert
			// won, finish linking against it.
			existing, getErr := s.referrals.GetReferralByEmail(ctx, email)
			if getErr != nil {
				return nil, getErr
			}
			if existing != nil {
				return s.completeRegistration(ctx, existing, userID)
			}
		}
		return nil, err
	}

	if err := s.assignments.IncrementReferrals(ctx, assignment.ID); err != nil {
		log.WithError(err).WithField("assignmentId", assignment.ID.Hex()).
			Error("Failed to increment totalReferrals")
	}
	return referral, nil
}

// completeRegistration handles the existing-referral branch: attach the
// user id when missing and promote click-stage rows to REGISTERED. An
// already linked referral is returned unchanged, whatever code was
// presented this time.
func (s *ReferralService) completeRegistration(ctx context.Context, referral *models.Referral, userID primitive.ObjectID) (*models.Referral, error) {
	if referral.ReferredUserID != nil {
		return referral, nil
	}

	if err := s.referrals.LinkUser(ctx, referral.ID, userID); err != nil {
		return nil, err
	}
	moved, err := s.referrals.TransitionStatus(ctx, referral.ID,
		[]models.ReferralStatus{models.ReferralClicked}, models.ReferralRegistered)
	if err != nil {
		return nil, err
	}
	if moved {
		// The click created the row without counting it as a referral;
		// the registration is what makes it one.
		if err := s.assignments.IncrementReferrals(ctx, referral.AssignmentID); err != nil {
			log.WithError(err).WithField("assignmentId", referral.AssignmentID.Hex()).
				Error("Failed to increment totalReferrals")
		}
	}
	return s.referrals.GetReferral(ctx, referral.ID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
