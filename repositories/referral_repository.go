package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refwise/refwise_backend/models"
	"github.com/refwise/refwise_backend/services"
)

// ReferralRepository stores referred-person rows, one per email (enforced
// by the unique index created at startup).
type ReferralRepository struct {
	collection *mongo.Collection
}

func NewReferralRepository(db *mongo.Database) *ReferralRepository {
	return &ReferralRepository{collection: db.Collection("referrals")}
}

func (r *ReferralRepository) GetReferral(ctx context.Context, id primitive.ObjectID) (*models.Referral, error) {
	var referral models.Referral
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&referral)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *ReferralRepository) GetReferralByEmail(ctx context.Context, email string) (*models.Referral, error) {
	var referral models.Referral
	err := r.collection.FindOne(ctx, bson.M{"referredEmail": email}).Decode(&referral)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *ReferralRepository) FindActiveByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Referral, error) {
	filter := bson.M{
		"referredUserId": userID,
		"status": bson.M{"$nin": []models.ReferralStatus{
			models.ReferralRefunded,
			models.ReferralFraudulent,
			models.ReferralCancelled,
		}},
	}
	var referral models.Referral
	err := r.collection.FindOne(ctx, filter).Decode(&referral)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *ReferralRepository) InsertReferral(ctx context.Context, referral *models.Referral) error {
	if referral.ID.IsZero() {
		referral.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, referral)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrDuplicate
	}
	return err
}

func (r *ReferralRepository) LinkUser(ctx context.Context, id primitive.ObjectID, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"referredUserId": userID,
			"updatedAt":      time.Now(),
		},
	})
	return err
}

// TransitionStatus performs a state-guarded update: the row only moves if
// its current status is in the allowed set, and the timestamp for the
// target state is stamped in the same write.
func (r *ReferralRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from []models.ReferralStatus, to models.ReferralStatus) (bool, error) {
	now := time.Now()
	set := bson.M{
		"status":    to,
		"updatedAt": now,
	}
	switch to {
	case models.ReferralRegistered:
		set["registeredAt"] = now
	case models.ReferralConverted:
		set["convertedAt"] = now
	case models.ReferralQualified:
		set["qualifiedAt"] = now
	case models.ReferralRefunded, models.ReferralFraudulent, models.ReferralCancelled:
		set["closedAt"] = now
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{
		"_id":    id,
		"status": bson.M{"$in": from},
	}, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}
