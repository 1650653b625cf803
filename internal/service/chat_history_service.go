package service

import (
	"context"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/repository"
)

// ChatHistoryService reads the persisted conversation log for session replay.
type ChatHistoryService interface {
	History(ctx context.Context, userID, sessionID string, limit int) ([]domain.ChatLog, error)
}

type chatHistoryService struct {
	chatLogs repository.ChatLogRepository
}

// NewChatHistoryService creates a new instance of chatHistoryService.
func NewChatHistoryService(chatLogs repository.ChatLogRepository) ChatHistoryService {
	return &chatHistoryService{chatLogs: chatLogs}
}

func (s *chatHistoryService) History(ctx context.Context, userID, sessionID string, limit int) ([]domain.ChatLog, error) {
	if userID == "" || sessionID == "" {
		return nil, ErrInvalidArgument
	}
	return s.chatLogs.GetBySession(ctx, userID, sessionID, limit)
}
