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

const chatLogCollectionName = "chat_logs"

// mongoChatLogRepository implements repository.ChatLogRepository.
type mongoChatLogRepository struct {
	collection *mongo.Collection
}

// NewMongoChatLogRepository creates a new ChatLog repository.
func NewMongoChatLogRepository(db *mongo.Database) repository.ChatLogRepository {
	return &mongoChatLogRepository{
		collection: db.Collection(chatLogCollectionName),
	}
}

// Append inserts one conversation line.
func (r *mongoChatLogRepository) Append(ctx context.Context, entry *domain.ChatLog) error {
	if entry.UserID == "" || entry.SessionID == "" || entry.Role == "" {
		return errors.New("chat log requires userId, sessionId, and role")
	}
	entry.ID = primitive.NewObjectID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

// GetBySession retrieves up to `limit` lines of a session in chronological
// order.
func (r *mongoChatLogRepository) GetBySession(ctx context.Context, userID, sessionID string, limit int) ([]domain.ChatLog, error) {
	if userID == "" || sessionID == "" {
		return nil, errors.New("user ID and session ID are required")
	}
	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{"userId": userID, "sessionId": sessionID}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []domain.ChatLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// EnsureChatLogIndexes creates necessary indexes. Call during startup.
func EnsureChatLogIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "sessionId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
