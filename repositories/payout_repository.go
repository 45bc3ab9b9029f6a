package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refwise/refwise_backend/models"
)

// PayoutRepository stores payout requests.
type PayoutRepository struct {
	collection *mongo.Collection
}

func NewPayoutRepository(db *mongo.Database) *PayoutRepository {
	return &PayoutRepository{collection: db.Collection("payout_requests")}
}

func (r *PayoutRepository) InsertPayoutRequest(ctx context.Context, p *models.PayoutRequest) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, p)
	return err
}

func (r *PayoutRepository) GetPayoutRequest(ctx context.Context, id primitive.ObjectID) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *PayoutRepository) FindPendingByAssignment(ctx context.Context, assignmentID primitive.ObjectID) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	err := r.collection.FindOne(ctx, bson.M{
		"assignmentId": assignmentID,
		"status":       models.PayoutPending,
	}).Decode(&request)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// MarkProcessed settles a request that is still pending; the status guard
// keeps two operators from processing it twice.
func (r *PayoutRepository) MarkProcessed(ctx context.Context, id primitive.ObjectID, status string, adminID primitive.ObjectID, note string, now time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(ctx, bson.M{
		"_id":    id,
		"status": models.PayoutPending,
	}, bson.M{
		"$set": bson.M{
			"status":      status,
			"adminId":     adminID,
			"adminNote":   note,
			"processedAt": now,
		},
	})
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}
