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

// AssignmentRepository stores referrer assignments. All counter updates go
// through $inc so concurrent events never lose increments.
type AssignmentRepository struct {
	collection *mongo.Collection
}

func NewAssignmentRepository(db *mongo.Database) *AssignmentRepository {
	return &AssignmentRepository{collection: db.Collection("assignments")}
}

func (r *AssignmentRepository) GetAssignment(ctx context.Context, id primitive.ObjectID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&assignment)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *AssignmentRepository) GetAssignmentByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&assignment)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindActiveByCode matches the shareable code or the custom slug, active
// assignments only.
func (r *AssignmentRepository) FindActiveByCode(ctx context.Context, code string) (*models.Assignment, error) {
	filter := bson.M{
		"status": models.AssignmentActive,
		"$or": []bson.M{
			{"code": code},
			{"customSlug": code},
		},
	}
	var assignment models.Assignment
	err := r.collection.FindOne(ctx, filter).Decode(&assignment)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *AssignmentRepository) InsertAssignment(ctx context.Context, a *models.Assignment) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrDuplicate
	}
	return err
}

func (r *AssignmentRepository) SetAssignmentStatus(ctx context.Context, id primitive.ObjectID, status models.AssignmentStatus) error {
	result, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": time.Now(),
		},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (r *AssignmentRepository) CountByProfile(ctx context.Context, profileID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"profileId": profileID})
}

func (r *AssignmentRepository) IncrementClicks(ctx context.Context, id primitive.ObjectID) error {
	return r.increment(ctx, id, bson.M{"totalClicks": 1})
}

func (r *AssignmentRepository) IncrementReferrals(ctx context.Context, id primitive.ObjectID) error {
	return r.increment(ctx, id, bson.M{"totalReferrals": 1})
}

func (r *AssignmentRepository) IncrementConverted(ctx context.Context, id primitive.ObjectID) error {
	return r.increment(ctx, id, bson.M{"totalConverted": 1})
}

func (r *AssignmentRepository) AddEarned(ctx context.Context, id primitive.ObjectID, amount float64) error {
	return r.increment(ctx, id, bson.M{"totalEarned": amount})
}

func (r *AssignmentRepository) AddPaidOut(ctx context.Context, id primitive.ObjectID, amount float64) error {
	return r.increment(ctx, id, bson.M{"totalPaidOut": amount})
}

func (r *AssignmentRepository) increment(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	_, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$inc": fields,
		"$set": bson.M{"updatedAt": time.Now()},
	})
	return err
}
