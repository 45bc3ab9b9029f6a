package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/refwise/refwise_backend/models"
	"github.com/refwise/refwise_backend/services"
)

// CommissionRepository stores ledger rows. The unique index on paymentId is
// what turns duplicate event delivery into a detectable conflict.
type CommissionRepository struct {
	collection *mongo.Collection
}

func NewCommissionRepository(db *mongo.Database) *CommissionRepository {
	return &CommissionRepository{collection: db.Collection("commissions")}
}

func (r *CommissionRepository) GetByPaymentID(ctx context.Context, paymentID string) (*models.Commission, error) {
	var commission models.Commission
	err := r.collection.FindOne(ctx, bson.M{"paymentId": paymentID}).Decode(&commission)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

func (r *CommissionRepository) InsertCommission(ctx context.Context, c *models.Commission) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrDuplicate
	}
	return err
}

func (r *CommissionRepository) CountForReferral(ctx context.Context, referralID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"referralId": referralID})
}

// SumForAssignmentSince totals the payable amounts of non-cancelled rows
// created since the given instant, used for the monthly cap.
func (r *CommissionRepository) SumForAssignmentSince(ctx context.Context, assignmentID primitive.ObjectID, since time.Time) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"assignmentId": assignmentID,
			"status":       bson.M{"$ne": models.CommissionCancelled},
			"createdAt":    bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": bson.M{"$ifNull": []interface{}{"$adjustedAmount", "$totalAmount"}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (r *CommissionRepository) FindDuePending(ctx context.Context, now time.Time, limit int64) ([]models.Commission, error) {
	filter := bson.M{
		"status":      models.CommissionPending,
		"qualifiesAt": bson.M{"$lte": now},
	}
	cursor, err := r.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "qualifiesAt", Value: 1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var due []models.Commission
	if err := cursor.All(ctx, &due); err != nil {
		return nil, err
	}
	return due, nil
}

// MarkQualified promotes a row that is still PENDING. The status guard in
// the filter is what makes overlapping sweeps safe.
func (r *CommissionRepository) MarkQualified(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(ctx, bson.M{
		"_id":    id,
		"status": models.CommissionPending,
	}, bson.M{
		"$set": bson.M{
			"status":      models.CommissionQualified,
			"qualifiedAt": now,
			"updatedAt":   now,
		},
	})
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

func (r *CommissionRepository) Cancel(ctx context.Context, id primitive.ObjectID, from []models.CommissionStatus, reason string) (bool, error) {
	result, err := r.collection.UpdateOne(ctx, bson.M{
		"_id":    id,
		"status": bson.M{"$in": from},
	}, bson.M{
		"$set": bson.M{
			"status":           models.CommissionCancelled,
			"adjustmentReason": reason,
			"updatedAt":        time.Now(),
		},
	})
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

func (r *CommissionRepository) MarkAdjusted(ctx context.Context, id primitive.ObjectID, reason string) error {
	_, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"status":           models.CommissionAdjusted,
			"adjustmentReason": reason,
			"updatedAt":        time.Now(),
		},
	})
	return err
}

func (r *CommissionRepository) SetAdjustedAmount(ctx context.Context, id primitive.ObjectID, amount float64) error {
	_, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"adjustedAmount": amount,
			"updatedAt":      time.Now(),
		},
	})
	return err
}

func (r *CommissionRepository) MarkPaidOut(ctx context.Context, id primitive.ObjectID, status models.CommissionStatus, now time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{
		"_id":    id,
		"status": models.CommissionQualified,
	}, bson.M{
		"$set": bson.M{
			"status":    status,
			"paidAt":    now,
			"updatedAt": now,
		},
	})
	return err
}

func (r *CommissionRepository) ListByAssignment(ctx context.Context, assignmentID primitive.ObjectID, page, limit int64) ([]models.Commission, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	filter := bson.M{"assignmentId": assignmentID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page-1)*limit).
		SetLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var commissions []models.Commission
	if err := cursor.All(ctx, &commissions); err != nil {
		return nil, 0, err
	}
	return commissions, total, nil
}

func (r *CommissionRepository) FindQualifiedByAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Commission, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"assignmentId": assignmentID,
		"status":       models.CommissionQualified,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var commissions []models.Commission
	if err := cursor.All(ctx, &commissions); err != nil {
		return nil, err
	}
	return commissions, nil
}

func (r *CommissionRepository) SumByStatus(ctx context.Context, assignmentID primitive.ObjectID) (map[models.CommissionStatus]float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"assignmentId": assignmentID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"total": bson.M{"$sum": bson.M{"$ifNull": []interface{}{"$adjustedAmount", "$totalAmount"}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Status models.CommissionStatus `bson:"_id"`
		Total  float64                 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	sums := make(map[models.CommissionStatus]float64, len(results))
	for _, row := range results {
		sums[row.Status] = row.Total
	}
	return sums, nil
}
