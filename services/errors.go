package services

import "errors"

// Sentinel errors returned by the service layer. Controllers translate
// these to HTTP responses; anything else is a 500. Expected business
// outcomes (no referrer on a payment, duplicate event delivery, cap
// reached) are not errors and never surface through these.
var (
	// ErrInvalidCode means the referral code or slug resolved to nothing
	// usable. Unknown codes, suspended referrers and inactive profiles are
	// deliberately indistinguishable to the caller.
	ErrInvalidCode = errors.New("invalid or inactive referral code")

	// ErrSelfReferral means the referred email belongs to the referrer.
	ErrSelfReferral = errors.New("self-referral is not allowed")

	// ErrNotFound means a directly requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned by stores when a uniqueness constraint
	// rejects an insert (code, slug, referred email or payment id).
	ErrDuplicate = errors.New("duplicate record")

	// ErrProfileInUse blocks deleting a profile that assignments reference.
	ErrProfileInUse = errors.New("profile is referenced by assignments")

	// ErrBelowPayoutThreshold rejects a payout request whose available
	// balance has not reached the policy's minimum threshold.
	ErrBelowPayoutThreshold = errors.New("balance below payout threshold")

	// ErrPayoutPending rejects a payout request while another is open.
	ErrPayoutPending = errors.New("a payout request is already pending")
)
