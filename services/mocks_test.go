package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/models"
)

// memStore is an in-memory implementation of every storage interface,
// mirroring the repository semantics: (nil, nil) lookups, ErrDuplicate on
// uniqueness violations and guarded transitions.
type memStore struct {
	profiles    map[primitive.ObjectID]*models.Profile
	assignments map[primitive.ObjectID]*models.Assignment
	referrals   map[primitive.ObjectID]*models.Referral
	commissions map[primitive.ObjectID]*models.Commission
	payouts     map[primitive.ObjectID]*models.PayoutRequest
	audits      []models.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		profiles:    make(map[primitive.ObjectID]*models.Profile),
		assignments: make(map[primitive.ObjectID]*models.Assignment),
		referrals:   make(map[primitive.ObjectID]*models.Referral),
		commissions: make(map[primitive.ObjectID]*models.Commission),
		payouts:     make(map[primitive.ObjectID]*models.PayoutRequest),
	}
}

// --- ProfileStore ---

func (m *memStore) GetProfile(_ context.Context, id primitive.ObjectID) (*models.Profile, error) {
	if p, ok := m.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) InsertProfile(_ context.Context, p *models.Profile) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, p *models.Profile) error {
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memStore) ListProfiles(_ context.Context) ([]models.Profile, error) {
	out := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memStore) DeleteProfile(_ context.Context, id primitive.ObjectID) error {
	delete(m.profiles, id)
	return nil
}

// --- AssignmentStore ---

func (m *memStore) GetAssignment(_ context.Context, id primitive.ObjectID) (*models.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetAssignmentByUserID(_ context.Context, userID primitive.ObjectID) (*models.Assignment, error) {
	for _, a := range m.assignments {
		if a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindActiveByCode(_ context.Context, code string) (*models.Assignment, error) {
	for _, a := range m.assignments {
		if a.Status != models.AssignmentActive {
			continue
		}
		if a.Code == code || (a.CustomSlug != "" && a.CustomSlug == code) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertAssignment(_ context.Context, a *models.Assignment) error {
	for _, other := range m.assignments {
		if other.Code == a.Code || other.UserID == a.UserID ||
			(a.CustomSlug != "" && other.CustomSlug == a.CustomSlug) {
			return ErrDuplicate
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}

func (m *memStore) SetAssignmentStatus(_ context.Context, id primitive.ObjectID, status models.AssignmentStatus) error {
	if a, ok := m.assignments[id]; ok {
		a.Status = status
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memStore) CountByProfile(_ context.Context, profileID primitive.ObjectID) (int64, error) {
	var n int64
	for _, a := range m.assignments {
		if a.ProfileID == profileID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) IncrementClicks(_ context.Context, id primitive.ObjectID) error {
	if a, ok := m.assignments[id]; ok {
		a.TotalClicks++
	}
	return nil
}

func (m *memStore) IncrementReferrals(_ context.Context, id primitive.ObjectID) error {
	if a, ok := m.assignments[id]; ok {
		a.TotalReferrals++
	}
	return nil
}

func (m *memStore) IncrementConverted(_ context.Context, id primitive.ObjectID) error {
	if a, ok := m.assignments[id]; ok {
		a.TotalConverted++
	}
	return nil
}

func (m *memStore) AddEarned(_ context.Context, id primitive.ObjectID, amount float64) error {
	if a, ok := m.assignments[id]; ok {
		a.TotalEarned = RoundCents(a.TotalEarned + amount)
	}
	return nil
}

func (m *memStore) AddPaidOut(_ context.Context, id primitive.ObjectID, amount float64) error {
	if a, ok := m.assignments[id]; ok {
		a.TotalPaidOut = RoundCents(a.TotalPaidOut + amount)
	}
	return nil
}

// --- ReferralStore ---

func (m *memStore) GetReferral(_ context.Context, id primitive.ObjectID) (*models.Referral, error) {
	if r, ok := m.referrals[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetReferralByEmail(_ context.Context, email string) (*models.Referral, error) {
	for _, r := range m.referrals {
		if r.ReferredEmail == email {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindActiveByUserID(_ context.Context, userID primitive.ObjectID) (*models.Referral, error) {
	for _, r := range m.referrals {
		if r.ReferredUserID != nil && *r.ReferredUserID == userID && !r.Status.IsTerminal() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertReferral(_ context.Context, r *models.Referral) error {
	for _, other := range m.referrals {
		if other.ReferredEmail == r.ReferredEmail {
			return ErrDuplicate
		}
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	cp := *r
	m.referrals[r.ID] = &cp
	return nil
}

func (m *memStore) LinkUser(_ context.Context, id primitive.ObjectID, userID primitive.ObjectID) error {
	if r, ok := m.referrals[id]; ok {
		uid := userID
		r.ReferredUserID = &uid
		r.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memStore) TransitionStatus(_ context.Context, id primitive.ObjectID, from []models.ReferralStatus, to models.ReferralStatus) (bool, error) {
	r, ok := m.referrals[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, f := range from {
		if r.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	now := time.Now()
	r.Status = to
	r.UpdatedAt = now
	switch to {
	case models.ReferralRegistered:
		r.RegisteredAt = &now
	case models.ReferralConverted:
		r.ConvertedAt = &now
	case models.ReferralQualified:
		r.QualifiedAt = &now
	case models.ReferralRefunded, models.ReferralFraudulent, models.ReferralCancelled:
		r.ClosedAt = &now
	}
	return true, nil
}

// --- CommissionStore ---

func (m *memStore) GetByPaymentID(_ context.Context, paymentID string) (*models.Commission, error) {
	for _, c := range m.commissions {
		if c.PaymentID == paymentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertCommission(_ context.Context, c *models.Commission) error {
	for _, other := range m.commissions {
		if other.PaymentID == c.PaymentID {
			return ErrDuplicate
		}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	cp := *c
	m.commissions[c.ID] = &cp
	return nil
}

func (m *memStore) CountForReferral(_ context.Context, referralID primitive.ObjectID) (int64, error) {
	var n int64
	for _, c := range m.commissions {
		if c.ReferralID == referralID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) SumForAssignmentSince(_ context.Context, assignmentID primitive.ObjectID, since time.Time) (float64, error) {
	var sum float64
	for _, c := range m.commissions {
		if c.AssignmentID != assignmentID || c.Status == models.CommissionCancelled {
			continue
		}
		if c.CreatedAt.Before(since) {
			continue
		}
		sum += c.PayableAmount()
	}
	return RoundCents(sum), nil
}

func (m *memStore) FindDuePending(_ context.Context, now time.Time, limit int64) ([]models.Commission, error) {
	var out []models.Commission
	for _, c := range m.commissions {
		if c.Status == models.CommissionPending && !c.QualifiesAt.After(now) {
			out = append(out, *c)
			if int64(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) MarkQualified(_ context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	c, ok := m.commissions[id]
	if !ok || c.Status != models.CommissionPending {
		return false, nil
	}
	c.Status = models.CommissionQualified
	c.QualifiedAt = &now
	c.UpdatedAt = now
	return true, nil
}

func (m *memStore) Cancel(_ context.Context, id primitive.ObjectID, from []models.CommissionStatus, reason string) (bool, error) {
	c, ok := m.commissions[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, f := range from {
		if c.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	c.Status = models.CommissionCancelled
	c.AdjustmentReason = reason
	c.UpdatedAt = time.Now()
	return true, nil
}

func (m *memStore) MarkAdjusted(_ context.Context, id primitive.ObjectID, reason string) error {
	if c, ok := m.commissions[id]; ok {
		c.Status = models.CommissionAdjusted
		c.AdjustmentReason = reason
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memStore) SetAdjustedAmount(_ context.Context, id primitive.ObjectID, amount float64) error {
	if c, ok := m.commissions[id]; ok {
		c.AdjustedAmount = &amount
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memStore) MarkPaidOut(_ context.Context, id primitive.ObjectID, status models.CommissionStatus, now time.Time) error {
	if c, ok := m.commissions[id]; ok {
		c.Status = status
		c.PaidAt = &now
		c.UpdatedAt = now
	}
	return nil
}

func (m *memStore) ListByAssignment(_ context.Context, assignmentID primitive.ObjectID, page, limit int64) ([]models.Commission, int64, error) {
	var out []models.Commission
	for _, c := range m.commissions {
		if c.AssignmentID == assignmentID {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) FindQualifiedByAssignment(_ context.Context, assignmentID primitive.ObjectID) ([]models.Commission, error) {
	var out []models.Commission
	for _, c := range m.commissions {
		if c.AssignmentID == assignmentID && c.Status == models.CommissionQualified {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) SumByStatus(_ context.Context, assignmentID primitive.ObjectID) (map[models.CommissionStatus]float64, error) {
	out := make(map[models.CommissionStatus]float64)
	for _, c := range m.commissions {
		if c.AssignmentID == assignmentID {
			out[c.Status] = RoundCents(out[c.Status] + c.PayableAmount())
		}
	}
	return out, nil
}

// --- AuditStore ---

func (m *memStore) Append(_ context.Context, entry *models.AuditLog) error {
	m.audits = append(m.audits, *entry)
	return nil
}

func (m *memStore) List(_ context.Context, page, limit int64) ([]models.AuditLog, int64, error) {
	return m.audits, int64(len(m.audits)), nil
}

// --- PayoutStore ---

func (m *memStore) InsertPayoutRequest(_ context.Context, p *models.PayoutRequest) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	m.payouts[p.ID] = &cp
	return nil
}

func (m *memStore) GetPayoutRequest(_ context.Context, id primitive.ObjectID) (*models.PayoutRequest, error) {
	if p, ok := m.payouts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) FindPendingByAssignment(_ context.Context, assignmentID primitive.ObjectID) (*models.PayoutRequest, error) {
	for _, p := range m.payouts {
		if p.AssignmentID == assignmentID && p.Status == models.PayoutPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) MarkProcessed(_ context.Context, id primitive.ObjectID, status string, adminID primitive.ObjectID, note string, now time.Time) (bool, error) {
	p, ok := m.payouts[id]
	if !ok || p.Status != models.PayoutPending {
		return false, nil
	}
	p.Status = status
	aid := adminID
	p.AdminID = &aid
	p.AdminNote = note
	p.ProcessedAt = &now
	return true, nil
}

// --- Notifier ---

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) NotifyCommissionEvent(_ primitive.ObjectID, event string, _ interface{}) error {
	n.events = append(n.events, event)
	return nil
}

// --- test fixtures ---

func percentagePolicy(pct float64) models.Policy {
	return models.Policy{
		Reward: models.RewardConfig{
			Type:       models.RewardPercentage,
			Percentage: pct,
		},
	}
}

// seedAffiliate creates an active AFFILIATE profile and assignment pair.
func seedAffiliate(store *memStore, policy models.Policy) (*models.Profile, *models.Assignment) {
	profile := &models.Profile{
		ID:       primitive.NewObjectID(),
		Name:     "Affiliate Standard",
		Kind:     models.ProfileKindAffiliate,
		IsActive: true,
		Policy:   policy,
	}
	store.profiles[profile.ID] = profile

	assignment := &models.Assignment{
		ID:        primitive.NewObjectID(),
		UserID:    primitive.NewObjectID(),
		UserEmail: "referrer@example.com",
		ProfileID: profile.ID,
		Code:      "REF-AAAAAA",
		Status:    models.AssignmentActive,
	}
	store.assignments[assignment.ID] = assignment
	return profile, assignment
}

// seedReferral creates a REGISTERED referral linked to a user.
func seedReferral(store *memStore, assignmentID primitive.ObjectID, email string) (*models.Referral, primitive.ObjectID) {
	userID := primitive.NewObjectID()
	now := time.Now()
	referral := &models.Referral{
		ID:             primitive.NewObjectID(),
		AssignmentID:   assignmentID,
		ReferredEmail:  email,
		ReferredUserID: &userID,
		Status:         models.ReferralRegistered,
		RegisteredAt:   &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	store.referrals[referral.ID] = referral
	return referral, userID
}

func newCommissionService(store *memStore, notifier Notifier) *CommissionService {
	attribution := NewAttributionService(store, store, nil)
	referralSvc := NewReferralService(attribution, store, store)
	return NewCommissionService(attribution, referralSvc, store, store, store, store, notifier)
}
