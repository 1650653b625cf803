package mongo

import (
	"context"
	"errors"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const exerciseTypeCollectionName = "exercise_types"

// mongoExerciseTypeRepository implements repository.ExerciseTypeRepository.
type mongoExerciseTypeRepository struct {
	collection *mongo.Collection
}

// NewMongoExerciseTypeRepository creates a new ExerciseType repository.
func NewMongoExerciseTypeRepository(db *mongo.Database) repository.ExerciseTypeRepository {
	return &mongoExerciseTypeRepository{
		collection: db.Collection(exerciseTypeCollectionName),
	}
}

// GetByUser retrieves the user's full catalog sorted by name.
func (r *mongoExerciseTypeRepository) GetByUser(ctx context.Context, userID string) ([]domain.ExerciseType, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}
	return r.find(ctx, bson.M{"userId": userID})
}

// GetByCategory retrieves catalog entries of one category.
func (r *mongoExerciseTypeRepository) GetByCategory(ctx context.Context, userID, category string) ([]domain.ExerciseType, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}
	return r.find(ctx, bson.M{"userId": userID, "category": category})
}

// Search retrieves catalog entries whose name contains the keyword,
// case-insensitively.
func (r *mongoExerciseTypeRepository) Search(ctx context.Context, userID, keyword string) ([]domain.ExerciseType, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}
	filter := bson.M{
		"userId": userID,
		"name":   bson.M{"$regex": primitive.Regex{Pattern: regexQuoteMeta(keyword), Options: "i"}},
	}
	return r.find(ctx, filter)
}

func (r *mongoExerciseTypeRepository) find(ctx context.Context, filter bson.M) ([]domain.ExerciseType, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var types []domain.ExerciseType
	if err = cursor.All(ctx, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// regexQuoteMeta escapes regex metacharacters so a user keyword is matched
// literally.
func regexQuoteMeta(s string) string {
	const special = `\.+*?()|[]{}^$`
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		for j := 0; j < len(special); j++ {
			if c == special[j] {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, c)
	}
	return string(out)
}

// EnsureExerciseTypeIndexes creates necessary indexes. Call during startup.
func EnsureExerciseTypeIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "category", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
