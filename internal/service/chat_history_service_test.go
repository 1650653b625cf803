package service

import (
	"context"
	"testing"
	"time"

	"fitcoach/coach-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatHistoryScopedToSession(t *testing.T) {
	chatLogs := &fakeChatLogRepo{}
	now := time.Now().UTC()
	for _, entry := range []*domain.ChatLog{
		{UserID: "user-1", SessionID: "sess-1", Role: "user", Content: "hi", CreatedAt: now},
		{UserID: "user-1", SessionID: "sess-1", Role: "assistant", Content: "hello", CreatedAt: now},
		{UserID: "user-1", SessionID: "sess-2", Role: "user", Content: "other session", CreatedAt: now},
		{UserID: "user-2", SessionID: "sess-1", Role: "user", Content: "other user", CreatedAt: now},
	} {
		require.NoError(t, chatLogs.Append(context.Background(), entry))
	}

	svc := NewChatHistoryService(chatLogs)
	logs, err := svc.History(context.Background(), "user-1", "sess-1", 100)
	require.NoError(t, err)

	require.Len(t, logs, 2)
	assert.Equal(t, "hi", logs[0].Content)
	assert.Equal(t, "hello", logs[1].Content)
}

func TestChatHistoryValidatesArguments(t *testing.T) {
	svc := NewChatHistoryService(&fakeChatLogRepo{})

	_, err := svc.History(context.Background(), "", "sess-1", 100)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = svc.History(context.Background(), "user-1", "", 100)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
