package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptDownloadURL(t *testing.T) {
	archive := newFakeArchive()
	svc := NewTranscriptService(archive)

	url, err := svc.DownloadURL(context.Background(), "user-1", "transcripts/user-1/sess-1/transcript.json")
	require.NoError(t, err)
	assert.Contains(t, url, "transcripts/user-1/sess-1/transcript.json")
}

func TestTranscriptAccessScopedToOwner(t *testing.T) {
	archive := newFakeArchive()
	svc := NewTranscriptService(archive)

	// Another user's key, including one whose uid merely shares a prefix.
	for _, key := range []string{
		"transcripts/user-2/sess-1/transcript.json",
		"transcripts/user-10/sess-1/transcript.json",
		"other/user-1/sess-1/transcript.json",
	} {
		_, err := svc.DownloadURL(context.Background(), "user-1", key)
		assert.ErrorIs(t, err, ErrTranscriptNotFound, "key %s", key)
		assert.ErrorIs(t, svc.Delete(context.Background(), "user-1", key), ErrTranscriptNotFound, "key %s", key)
	}
	assert.Empty(t, archive.deleted)
}

func TestTranscriptDelete(t *testing.T) {
	archive := newFakeArchive()
	svc := NewTranscriptService(archive)

	key := "transcripts/user-1/sess-1/transcript.json"
	require.NoError(t, svc.Delete(context.Background(), "user-1", key))
	assert.Equal(t, []string{key}, archive.deleted)
}

func TestTranscriptArchiveDisabled(t *testing.T) {
	svc := NewTranscriptService(nil)

	_, err := svc.DownloadURL(context.Background(), "user-1", "transcripts/user-1/sess-1/transcript.json")
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	assert.ErrorIs(t, svc.Delete(context.Background(), "user-1", "transcripts/user-1/sess-1/transcript.json"), ErrArchiveDisabled)
}

func TestTranscriptValidatesArguments(t *testing.T) {
	svc := NewTranscriptService(newFakeArchive())

	_, err := svc.DownloadURL(context.Background(), "", "transcripts/user-1/x.json")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = svc.DownloadURL(context.Background(), "user-1", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
