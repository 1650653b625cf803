package mongo

import (
	"context"
	"errors"
	"time"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const streamCollectionName = "stream_sessions"

// maxAppendAttempts bounds the optimistic-concurrency retry loop. Within one
// request there is a single logical writer per stream key, so conflicts are
// rare and a small bound is plenty.
const maxAppendAttempts = 5

// mongoStreamSessionRepository implements repository.StreamSessionRepository.
type mongoStreamSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoStreamSessionRepository creates a new StreamSession repository.
func NewMongoStreamSessionRepository(db *mongo.Database) repository.StreamSessionRepository {
	return &mongoStreamSessionRepository{
		collection: db.Collection(streamCollectionName),
	}
}

func keyFilter(key domain.StreamKey) bson.M {
	return bson.M{"_id": key.DocumentID()}
}

// Create inserts (or resets) the stream record in its pending state.
func (r *mongoStreamSessionRepository) Create(ctx context.Context, session *domain.StreamSession) error {
	if session.UserID == "" || session.SessionID == "" || session.StreamID == "" {
		return errors.New("stream session requires userId, sessionId, and streamId")
	}
	key := domain.StreamKey{UserID: session.UserID, SessionID: session.SessionID, StreamID: session.StreamID}
	session.ID = key.DocumentID()
	now := time.Now().UTC()
	session.Status = domain.StreamPending
	session.Content = ""
	session.Error = ""
	session.Meta = nil
	session.Version = 0
	session.CreatedAt = now
	session.UpdatedAt = now

	// Upsert so a retried request with the same stream key starts clean.
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, keyFilter(key), session, opts)
	return err
}

// Get retrieves the externally observable stream record.
func (r *mongoStreamSessionRepository) Get(ctx context.Context, key domain.StreamKey) (*domain.StreamSession, error) {
	var session domain.StreamSession
	err := r.collection.FindOne(ctx, keyFilter(key)).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// AppendContent appends text to the content field via an optimistic
// read-version / conditional-write loop. A concurrent writer makes the
// conditional write match nothing, in which case the loop re-reads and tries
// again on the fresh base value, so no appender ever overwrites another's
// bytes.
func (r *mongoStreamSessionRepository) AppendContent(ctx context.Context, key domain.StreamKey, text string) error {
	if text == "" {
		return nil
	}
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		var session domain.StreamSession
		err := r.collection.FindOne(ctx, keyFilter(key)).Decode(&session)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return repository.ErrNotFound
			}
			return err
		}

		filter := bson.M{"_id": key.DocumentID(), "version": session.Version}
		update := bson.M{
			"$set": bson.M{
				"content":   session.Content + text,
				"updatedAt": time.Now().UTC(),
			},
			"$inc": bson.M{"version": 1},
		}
		result, err := r.collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return err
		}
		if result.ModifiedCount == 1 {
			return nil
		}
		// Lost the race: someone bumped the version between read and write.
	}
	return repository.ErrConflict
}

// SetMetadata replaces metadata wholesale (last writer wins).
func (r *mongoStreamSessionRepository) SetMetadata(ctx context.Context, key domain.StreamKey, meta *domain.StreamMeta) error {
	update := bson.M{
		"$set": bson.M{
			"meta":      meta,
			"updatedAt": time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, keyFilter(key), update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetStatus moves status forward. Once a terminal status (done/error) is
// written the guard filter stops matching, so the record can never leave a
// terminal state.
func (r *mongoStreamSessionRepository) SetStatus(ctx context.Context, key domain.StreamKey, status domain.StreamStatus, errMsg string) error {
	filter := bson.M{
		"_id":    key.DocumentID(),
		"status": bson.M{"$nin": bson.A{domain.StreamDone, domain.StreamError}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"error":     errMsg,
			"updatedAt": time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrUpdateFailed
	}
	return nil
}

// Delete removes the stream record after the client is done with it.
func (r *mongoStreamSessionRepository) Delete(ctx context.Context, key domain.StreamKey) error {
	result, err := r.collection.DeleteOne(ctx, keyFilter(key))
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureStreamSessionIndexes creates necessary indexes. The TTL index
// garbage-collects streams abandoned by clients that never call Delete.
func EnsureStreamSessionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "sessionId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "updatedAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(24 * 60 * 60),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
