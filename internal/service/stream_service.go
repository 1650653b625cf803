package service

import (
	"context"
	"errors"
	"log"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/repository"
)

// --- Error Definitions ---
var (
	ErrStreamNotFound    = errors.New("stream session not found")
	ErrStreamUnavailable = errors.New("stream store unavailable")
)

// StreamService is the Streaming Session Manager: it owns the broadcast
// record per (user, session, stream) tuple that a client polls to render
// token-by-token output.
type StreamService interface {
	// Initialize creates the record in its pending state. A failure here is
	// fatal to the whole chat request.
	Initialize(ctx context.Context, key domain.StreamKey) error
	// AppendContent appends text transactionally. Mid-stream failures are
	// retried with the buffered text and, if still failing, reported to the
	// caller who may drop the frame; the persisted transcript stays
	// authoritative either way.
	AppendContent(ctx context.Context, key domain.StreamKey, text string) error
	// SetMetadata replaces highlights/actions wholesale.
	SetMetadata(ctx context.Context, key domain.StreamKey, meta *domain.StreamMeta) error
	// Transition moves status forward; done/error are terminal.
	Transition(ctx context.Context, key domain.StreamKey, status domain.StreamStatus, errMsg string) error
	// Get returns the externally observable record.
	Get(ctx context.Context, key domain.StreamKey) (*domain.StreamSession, error)
	// Clear deletes the record once the client is done with it.
	Clear(ctx context.Context, key domain.StreamKey) error
}

// streamService implements the StreamService interface.
type streamService struct {
	streams       repository.StreamSessionRepository
	appendRetries int
}

// NewStreamService creates a new instance of streamService.
func NewStreamService(streams repository.StreamSessionRepository, appendRetries int) StreamService {
	if appendRetries <= 0 {
		appendRetries = 3
	}
	return &streamService{
		streams:       streams,
		appendRetries: appendRetries,
	}
}

func (s *streamService) Initialize(ctx context.Context, key domain.StreamKey) error {
	session := &domain.StreamSession{
		UserID:    key.UserID,
		SessionID: key.SessionID,
		StreamID:  key.StreamID,
	}
	if err := s.streams.Create(ctx, session); err != nil {
		log.Printf("ERROR: Failed to initialize stream %s: %v", key.DocumentID(), err)
		return ErrStreamUnavailable
	}
	return nil
}

func (s *streamService) AppendContent(ctx context.Context, key domain.StreamKey, text string) error {
	if text == "" {
		return nil
	}
	var err error
	for attempt := 0; attempt < s.appendRetries; attempt++ {
		err = s.streams.AppendContent(ctx, key, text)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrNotFound) {
			return ErrStreamNotFound
		}
	}
	log.Printf("WARN: Dropping stream append after %d attempts on %s: %v", s.appendRetries, key.DocumentID(), err)
	return err
}

func (s *streamService) SetMetadata(ctx context.Context, key domain.StreamKey, meta *domain.StreamMeta) error {
	err := s.streams.SetMetadata(ctx, key, meta)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrStreamNotFound
	}
	return err
}

func (s *streamService) Transition(ctx context.Context, key domain.StreamKey, status domain.StreamStatus, errMsg string) error {
	err := s.streams.SetStatus(ctx, key, status, errMsg)
	if err != nil {
		// ErrUpdateFailed here means the record is already terminal; the
		// transition is a no-op by design, not a failure worth propagating.
		if errors.Is(err, repository.ErrUpdateFailed) {
			log.Printf("WARN: Ignoring transition to %s on terminal stream %s", status, key.DocumentID())
			return nil
		}
		if errors.Is(err, repository.ErrNotFound) {
			return ErrStreamNotFound
		}
	}
	return err
}

func (s *streamService) Get(ctx context.Context, key domain.StreamKey) (*domain.StreamSession, error) {
	session, err := s.streams.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *streamService) Clear(ctx context.Context, key domain.StreamKey) error {
	err := s.streams.Delete(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrStreamNotFound
	}
	return err
}
