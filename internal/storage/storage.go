package storage

import (
	"context"
	"fmt"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// TranscriptKeyPrefix is the per-user namespace transcripts are stored under.
// Callers use it to check that a key belongs to the requesting user.
func TranscriptKeyPrefix(userID string) string {
	return fmt.Sprintf("transcripts/%s/", userID)
}

// TranscriptArchive defines the interface for archiving finished coach
// conversations to object storage.
type TranscriptArchive interface {
	// SaveTranscript uploads one finished exchange and returns the object key
	// it was stored under.
	SaveTranscript(ctx context.Context, userID, sessionID string, transcript []byte) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET
	// requests for downloading an archived transcript.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an archived transcript.
	DeleteObject(ctx context.Context, objectKey string) error
}
