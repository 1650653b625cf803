package llm

import (
	"net/http"
	"testing"
	"time"

	"fitcoach/coach-backend/internal/config"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientConfigAppliesOverrides(t *testing.T) {
	cfg := config.OpenAIConfig{
		APIKey:         "test-key",
		BaseURL:        "http://llm.internal/v1",
		RequestTimeout: 30 * time.Second,
	}

	clientConfig := newClientConfig(cfg)

	assert.Equal(t, "http://llm.internal/v1", clientConfig.BaseURL)
	httpClient, ok := clientConfig.HTTPClient.(*http.Client)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, httpClient.Timeout)
}

func TestNewClientConfigDefaults(t *testing.T) {
	clientConfig := newClientConfig(config.OpenAIConfig{APIKey: "test-key"})

	assert.Equal(t, openai.DefaultConfig("test-key").BaseURL, clientConfig.BaseURL)
	httpClient, ok := clientConfig.HTTPClient.(*http.Client)
	require.True(t, ok)
	// No configured timeout leaves the SDK default client untouched.
	assert.Equal(t, time.Duration(0), httpClient.Timeout)
}
