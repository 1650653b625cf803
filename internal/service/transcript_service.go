package service

import (
	"context"
	"errors"
	"strings"

	"fitcoach/coach-backend/internal/storage"
)

// --- Error Definitions ---
var (
	ErrArchiveDisabled    = errors.New("transcript archive not configured")
	ErrTranscriptNotFound = errors.New("transcript not found")
)

// TranscriptService exposes the archived-conversation exports: a client can
// fetch a temporary download URL for one of its transcripts or delete one.
type TranscriptService interface {
	DownloadURL(ctx context.Context, userID, objectKey string) (string, error)
	Delete(ctx context.Context, userID, objectKey string) error
}

// transcriptService implements the TranscriptService interface.
type transcriptService struct {
	archive storage.TranscriptArchive // nil when archiving is disabled
}

// NewTranscriptService creates a new instance of transcriptService.
func NewTranscriptService(archive storage.TranscriptArchive) TranscriptService {
	return &transcriptService{archive: archive}
}

// authorize checks the key sits inside the caller's namespace. Keys are
// written under a per-user prefix on upload; anything outside it is reported
// as nonexistent so the endpoint never confirms foreign keys.
func (s *transcriptService) authorize(userID, objectKey string) error {
	if userID == "" || objectKey == "" {
		return ErrInvalidArgument
	}
	if !strings.HasPrefix(objectKey, storage.TranscriptKeyPrefix(userID)) {
		return ErrTranscriptNotFound
	}
	return nil
}

func (s *transcriptService) DownloadURL(ctx context.Context, userID, objectKey string) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}
	if err := s.authorize(userID, objectKey); err != nil {
		return "", err
	}
	return s.archive.GeneratePresignedDownloadURL(ctx, objectKey, storage.DefaultPresignedURLExpiry)
}

func (s *transcriptService) Delete(ctx context.Context, userID, objectKey string) error {
	if s.archive == nil {
		return ErrArchiveDisabled
	}
	if err := s.authorize(userID, objectKey); err != nil {
		return err
	}
	return s.archive.DeleteObject(ctx, objectKey)
}
