package repository

import (
	"context"
	"time"

	"fitcoach/coach-backend/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("version conflict")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// TrainingRecordRepository reads logged sessions. The coach backend never
// mutates records; implementations must exclude soft-deleted documents.
type TrainingRecordRepository interface {
	GetByUserSince(ctx context.Context, userID string, since time.Time) ([]domain.TrainingRecord, error)
	GetRecent(ctx context.Context, userID string, limit int) ([]domain.TrainingRecord, error)
	GetByID(ctx context.Context, userID string, id primitive.ObjectID) (*domain.TrainingRecord, error)
}

// ExerciseTypeRepository reads the per-user exercise catalog.
type ExerciseTypeRepository interface {
	GetByUser(ctx context.Context, userID string) ([]domain.ExerciseType, error)
	GetByCategory(ctx context.Context, userID, category string) ([]domain.ExerciseType, error)
	Search(ctx context.Context, userID, keyword string) ([]domain.ExerciseType, error)
}

// RoutineRepository persists and reads saved routines.
type RoutineRepository interface {
	Create(ctx context.Context, routine *domain.Routine) (primitive.ObjectID, error)
	GetByUser(ctx context.Context, userID string) ([]domain.Routine, error)
	GetByID(ctx context.Context, userID string, id primitive.ObjectID) (*domain.Routine, error)
}

// ChatLogRepository appends and reads the authoritative conversation log.
type ChatLogRepository interface {
	Append(ctx context.Context, entry *domain.ChatLog) error
	GetBySession(ctx context.Context, userID, sessionID string, limit int) ([]domain.ChatLog, error)
}

// StreamSessionRepository owns the broadcast record subscribers poll for
// incremental output. AppendContent must be a read-modify-write that retries
// until it observes a consistent base value; a failed write must never
// corrupt previously accumulated content.
type StreamSessionRepository interface {
	Create(ctx context.Context, session *domain.StreamSession) error
	Get(ctx context.Context, key domain.StreamKey) (*domain.StreamSession, error)
	AppendContent(ctx context.Context, key domain.StreamKey, text string) error
	SetMetadata(ctx context.Context, key domain.StreamKey, meta *domain.StreamMeta) error
	SetStatus(ctx context.Context, key domain.StreamKey, status domain.StreamStatus, errMsg string) error
	Delete(ctx context.Context, key domain.StreamKey) error
}
