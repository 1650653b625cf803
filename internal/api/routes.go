package api

import (
	"net/http"

	"fitcoach/coach-backend/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	coachService service.CoachService,
	streamService service.StreamService,
	historyService service.ChatHistoryService,
	transcriptService service.TranscriptService,
) {
	coachHandler := NewCoachHandler(coachService, streamService, historyService, transcriptService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr})
		})

		// --- Coach Routes ---
		coachGroup := protected.Group("/coach")
		{
			// POST /api/v1/coach/chat
			coachGroup.POST("/chat", coachHandler.Chat)
			// GET /api/v1/coach/stream/{sessionId}/{streamId}
			coachGroup.GET("/stream/:sessionId/:streamId", coachHandler.GetStream)
			// DELETE /api/v1/coach/stream/{sessionId}/{streamId}
			coachGroup.DELETE("/stream/:sessionId/:streamId", coachHandler.ClearStream)
			// GET /api/v1/coach/history/{sessionId}
			coachGroup.GET("/history/:sessionId", coachHandler.GetHistory)
			// GET /api/v1/coach/transcripts/url?key={objectKey}
			coachGroup.GET("/transcripts/url", coachHandler.GetTranscriptURL)
			// DELETE /api/v1/coach/transcripts?key={objectKey}
			coachGroup.DELETE("/transcripts", coachHandler.DeleteTranscript)
		}
	}
}
