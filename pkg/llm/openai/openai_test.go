package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegish/aegish/pkg/types"
)

// sseServer returns a test server that streams the given SSE lines.
func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
		}
	}))
}

func TestNewProviderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewProvider("")
	require.Error(t, err)
}

func TestStreamCompletion(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"role":"assistant","content":""}}]}`,
		`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
		": keepalive comment",
		`data: {"choices":[{"delta":{"content":" world"}}]}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	provider, err := NewProvider("test-key", WithBaseURL(srv.URL), WithModel("test-model"))
	require.NoError(t, err)

	stream, err := provider.StreamCompletion(context.Background(), []*types.Message{
		types.NewUserMessage("hi"),
	})
	require.NoError(t, err)

	var content string
	var finished bool
	for chunk := range stream {
		require.NoError(t, chunk.Error)
		content += chunk.Content
		if chunk.Finished {
			finished = true
		}
	}

	assert.Equal(t, "Hello world", content)
	assert.True(t, finished)
}

func TestCompleteAccumulates(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"role":"assistant","content":"a"}}]}`,
		`data: {"choices":[{"delta":{"content":"b"},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	provider, err := NewProvider("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	msg, err := provider.Complete(context.Background(), []*types.Message{
		types.NewUserMessage("hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.RoleAssistant, msg.Role)
	assert.Equal(t, "ab", msg.Content)
}

func TestStreamCompletionHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	provider, err := NewProvider("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = provider.StreamCompletion(context.Background(), []*types.Message{
		types.NewUserMessage("hi"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
