package services

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refwise/refwise_backend/models"
)

const codeCacheTTL = 5 * time.Minute

// AttributionService resolves referral codes to active assignments and
// computes the effective policy. Pure read; the only side effect is the
// redis code cache.
type AttributionService struct {
	assignments AssignmentStore
	profiles    ProfileStore
	cache       *redis.Client // optional, nil disables caching
}

func NewAttributionService(assignments AssignmentStore, profiles ProfileStore, cache *redis.Client) *AttributionService {
	return &AttributionService{
		assignments: assignments,
		profiles:    profiles,
		cache:       cache,
	}
}

// ResolvedAssignment bundles the assignment, its profile and the merged
// policy for one resolved code.
type ResolvedAssignment struct {
	Assignment *models.Assignment
	Profile    *models.Profile
	Policy     models.Policy
}

// Resolve maps a referral code or custom slug to its active assignment.
// Expired codes, typos, suspended referrers and deactivated profiles all
// fail closed with ErrInvalidCode; the caller cannot tell them apart.
func (s *AttributionService) Resolve(ctx context.Context, code string) (*ResolvedAssignment, error) {
	assignment, err := s.lookupAssignment(ctx, code)
	if err != nil {
		return nil, err
	}
	if assignment == nil || assignment.Status != models.AssignmentActive {
		return nil, ErrInvalidCode
	}

	profile, err := s.profiles.GetProfile(ctx, assignment.ProfileID)
	if err != nil {
		return nil, err
	}
	if profile == nil || !profile.IsActive {
		return nil, ErrInvalidCode
	}

	return &ResolvedAssignment{
		Assignment: assignment,
		Profile:    profile,
		Policy:     EffectivePolicy(profile.Policy, assignment.Override),
	}, nil
}

// lookupAssignment consults the redis code cache first. Only the code to
// assignment-id mapping is cached; the document itself is always read fresh
// so counters and status are never stale.
func (s *AttributionService) lookupAssignment(ctx context.Context, code string) (*models.Assignment, error) {
	if s.cache != nil {
		if hex, err := s.cache.Get(ctx, codeCacheKey(code)).Result(); err == nil {
			if id, idErr := primitive.ObjectIDFromHex(hex); idErr == nil {
				assignment, getErr := s.assignments.GetAssignment(ctx, id)
				if getErr != nil {
					return nil, getErr
				}
				if assignment != nil {
					return assignment, nil
				}
			}
			// Stale cache entry, fall through to the database.
			s.cache.Del(ctx, codeCacheKey(code))
		}
	}

	assignment, err := s.assignments.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if assignment != nil && s.cache != nil {
		if err := s.cache.Set(ctx, codeCacheKey(code), assignment.ID.Hex(), codeCacheTTL).Err(); err != nil {
			log.WithError(err).Warn("Failed to cache referral code lookup")
		}
	}
	return assignment, nil
}

// InvalidateCode drops the cache entries for an assignment's code and slug.
// Called after suspension so the resolver fails closed immediately.
func (s *AttributionService) InvalidateCode(ctx context.Context, assignment *models.Assignment) {
	if s.cache == nil || assignment == nil {
		return
	}
	s.cache.Del(ctx, codeCacheKey(assignment.Code))
	if assignment.CustomSlug != "" {
		s.cache.Del(ctx, codeCacheKey(assignment.CustomSlug))
	}
}

func codeCacheKey(code string) string {
	return "refcode:" + code
}
