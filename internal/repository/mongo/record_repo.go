package mongo

import (
	"context"
	"errors"
	"time"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const recordCollectionName = "training_records"

// mongoTrainingRecordRepository implements repository.TrainingRecordRepository.
// Records are written by the mobile CRUD layer; this repository is read-only
// and always filters out soft-deleted documents.
type mongoTrainingRecordRepository struct {
	collection *mongo.Collection
}

// NewMongoTrainingRecordRepository creates a new TrainingRecord repository.
func NewMongoTrainingRecordRepository(db *mongo.Database) repository.TrainingRecordRepository {
	return &mongoTrainingRecordRepository{
		collection: db.Collection(recordCollectionName),
	}
}

// GetByUserSince retrieves non-deleted records performed at or after `since`,
// most recent first.
func (r *mongoTrainingRecordRepository) GetByUserSince(ctx context.Context, userID string, since time.Time) ([]domain.TrainingRecord, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}
	filter := bson.M{
		"userId":      userID,
		"deleted":     bson.M{"$ne": true},
		"performedAt": bson.M{"$gte": since},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "performedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []domain.TrainingRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetRecent retrieves up to `limit` non-deleted records, most recent first.
func (r *mongoTrainingRecordRepository) GetRecent(ctx context.Context, userID string, limit int) ([]domain.TrainingRecord, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}
	if limit <= 0 {
		limit = 10
	}
	filter := bson.M{
		"userId":  userID,
		"deleted": bson.M{"$ne": true},
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "performedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []domain.TrainingRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetByID retrieves a single non-deleted record owned by the user.
func (r *mongoTrainingRecordRepository) GetByID(ctx context.Context, userID string, id primitive.ObjectID) (*domain.TrainingRecord, error) {
	var record domain.TrainingRecord
	filter := bson.M{
		"_id":     id,
		"userId":  userID,
		"deleted": bson.M{"$ne": true},
	}
	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// EnsureTrainingRecordIndexes creates necessary indexes. Call during startup.
func EnsureTrainingRecordIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "performedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
