package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"fitcoach/coach-backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// stubTranscriptService scripts the service layer for handler tests.
type stubTranscriptService struct {
	url     string
	err     error
	deleted []string
}

func (s *stubTranscriptService) DownloadURL(ctx context.Context, userID, objectKey string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

func (s *stubTranscriptService) Delete(ctx context.Context, userID, objectKey string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, objectKey)
	return nil
}

func transcriptTestRouter(transcripts service.TranscriptService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewCoachHandler(nil, nil, nil, transcripts)
	authed := router.Group("", func(c *gin.Context) {
		c.Set(ContextUserIDKey, "user-1")
	})
	authed.GET("/coach/transcripts/url", handler.GetTranscriptURL)
	authed.DELETE("/coach/transcripts", handler.DeleteTranscript)
	return router
}

func TestGetTranscriptURL(t *testing.T) {
	stub := &stubTranscriptService{url: "https://archive.test/signed"}
	router := transcriptTestRouter(stub)

	key := url.QueryEscape("transcripts/user-1/sess-1/transcript.json")
	req := httptest.NewRequest(http.MethodGet, "/coach/transcripts/url?key="+key, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://archive.test/signed")
}

func TestGetTranscriptURLRequiresKey(t *testing.T) {
	router := transcriptTestRouter(&stubTranscriptService{})

	req := httptest.NewRequest(http.MethodGet, "/coach/transcripts/url", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTranscriptURLErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrArchiveDisabled, http.StatusServiceUnavailable},
		{service.ErrTranscriptNotFound, http.StatusNotFound},
		{service.ErrInvalidArgument, http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		router := transcriptTestRouter(&stubTranscriptService{err: tc.err})

		req := httptest.NewRequest(http.MethodGet, "/coach/transcripts/url?key=x", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, tc.code, w.Code, "error %v", tc.err)
	}
}

func TestDeleteTranscript(t *testing.T) {
	stub := &stubTranscriptService{}
	router := transcriptTestRouter(stub)

	key := url.QueryEscape("transcripts/user-1/sess-1/transcript.json")
	req := httptest.NewRequest(http.MethodDelete, "/coach/transcripts?key="+key, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"transcripts/user-1/sess-1/transcript.json"}, stub.deleted)
}

func TestDeleteTranscriptNotFound(t *testing.T) {
	router := transcriptTestRouter(&stubTranscriptService{err: service.ErrTranscriptNotFound})

	req := httptest.NewRequest(http.MethodDelete, "/coach/transcripts?key=x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
