package api

import (
	"context"
	"errors"
	"net/http"

	"fitcoach/coach-backend/internal/domain"
	"fitcoach/coach-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// CoachHandler exposes the AI coach endpoints.
type CoachHandler struct {
	coach       service.CoachService
	stream      service.StreamService
	chatLogs    service.ChatHistoryService
	transcripts service.TranscriptService
}

// NewCoachHandler creates a new CoachHandler.
func NewCoachHandler(coach service.CoachService, stream service.StreamService, chatLogs service.ChatHistoryService, transcripts service.TranscriptService) *CoachHandler {
	return &CoachHandler{
		coach:       coach,
		stream:      stream,
		chatLogs:    chatLogs,
		transcripts: transcripts,
	}
}

type chatRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Message   string `json:"message" binding:"required"`
	StreamID  string `json:"streamId" binding:"required"`
}

type chatResponse struct {
	Reply      string                   `json:"reply"`
	Highlights []string                 `json:"highlights"`
	Actions    []domain.SuggestedAction `json:"actions"`
	StreamID   string                   `json:"streamId"`
}

// Chat handles POST /coach/chat. The run executes on a detached context so a
// client disconnect mid-stream never aborts it; the transcript is persisted
// regardless of live delivery.
func (h *CoachHandler) Chat(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "sessionId, message, and streamId are required")
		return
	}

	key := domain.StreamKey{UserID: userID, SessionID: req.SessionID, StreamID: req.StreamID}
	reply, err := h.coach.RunStreaming(context.Background(), userID, req.SessionID, req.Message, key)
	if err != nil {
		if errors.Is(err, service.ErrInvalidArgument) {
			abortWithError(c, http.StatusBadRequest, "Invalid chat request")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Coach request failed")
		return
	}

	c.JSON(http.StatusOK, chatResponse{
		Reply:      reply.Reply,
		Highlights: reply.Highlights,
		Actions:    reply.Actions,
		StreamID:   req.StreamID,
	})
}

// GetStream handles GET /coach/stream/:sessionId/:streamId, the poll-based
// subscription endpoint.
func (h *CoachHandler) GetStream(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	key := domain.StreamKey{
		UserID:    userID,
		SessionID: c.Param("sessionId"),
		StreamID:  c.Param("streamId"),
	}
	session, err := h.stream.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrStreamNotFound) {
			abortWithError(c, http.StatusNotFound, "Stream not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to load stream")
		return
	}
	c.JSON(http.StatusOK, session)
}

// ClearStream handles DELETE /coach/stream/:sessionId/:streamId.
func (h *CoachHandler) ClearStream(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	key := domain.StreamKey{
		UserID:    userID,
		SessionID: c.Param("sessionId"),
		StreamID:  c.Param("streamId"),
	}
	if err := h.stream.Clear(c.Request.Context(), key); err != nil {
		if errors.Is(err, service.ErrStreamNotFound) {
			abortWithError(c, http.StatusNotFound, "Stream not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to clear stream")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetTranscriptURL handles GET /coach/transcripts/url?key=... and returns a
// temporary download URL for one archived transcript.
func (h *CoachHandler) GetTranscriptURL(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	objectKey := c.Query("key")
	if objectKey == "" {
		abortWithError(c, http.StatusBadRequest, "key query parameter is required")
		return
	}
	url, err := h.transcripts.DownloadURL(c.Request.Context(), userID, objectKey)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrArchiveDisabled):
			abortWithError(c, http.StatusServiceUnavailable, "Transcript archive is not configured")
		case errors.Is(err, service.ErrTranscriptNotFound):
			abortWithError(c, http.StatusNotFound, "Transcript not found")
		case errors.Is(err, service.ErrInvalidArgument):
			abortWithError(c, http.StatusBadRequest, "Invalid transcript key")
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to generate download URL")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// DeleteTranscript handles DELETE /coach/transcripts?key=....
func (h *CoachHandler) DeleteTranscript(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	objectKey := c.Query("key")
	if objectKey == "" {
		abortWithError(c, http.StatusBadRequest, "key query parameter is required")
		return
	}
	if err := h.transcripts.Delete(c.Request.Context(), userID, objectKey); err != nil {
		switch {
		case errors.Is(err, service.ErrArchiveDisabled):
			abortWithError(c, http.StatusServiceUnavailable, "Transcript archive is not configured")
		case errors.Is(err, service.ErrTranscriptNotFound):
			abortWithError(c, http.StatusNotFound, "Transcript not found")
		case errors.Is(err, service.ErrInvalidArgument):
			abortWithError(c, http.StatusBadRequest, "Invalid transcript key")
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to delete transcript")
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// GetHistory handles GET /coach/history/:sessionId.
func (h *CoachHandler) GetHistory(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	logs, err := h.chatLogs.History(c.Request.Context(), userID, c.Param("sessionId"), 100)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load chat history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": logs})
}
