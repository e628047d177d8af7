package anthropic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/pelorus-ai/pelorus/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
	"id": "msg_01XYZ",
	"type": "message",
	"role": "assistant",
	"model": "claude-3-5-sonnet-20241022",
	"content": [
		{"type": "text", "text": "The answer "},
		{"type": "text", "text": "is 4."}
	],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 20, "output_tokens": 6}
}`

func TestComplete(t *testing.T) {
	var gotBody map[string]any
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/messages", r.URL.Path)
		gotHeader = r.Header.Clone()
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	p := New("test-key", WithBaseURL(srv.URL))
	req := provider.NewRequest("claude-3-5-sonnet-20241022",
		provider.System("You are terse."),
		provider.User("What is 2+2?"),
	).WithMaxTokens(128).WithTemperature(0.5)

	resp, err := p.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotHeader.Get("x-api-key"))
	assert.Equal(t, apiVersion, gotHeader.Get("anthropic-version"))

	assert.Equal(t, "You are terse.", gotBody["system"], "system prompt moves to the top-level field")
	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1, "system message is not repeated in the list")
	assert.Equal(t, float64(128), gotBody["max_tokens"])
	assert.Equal(t, 0.5, gotBody["temperature"])

	assert.Equal(t, "msg_01XYZ", resp.ID)
	assert.Equal(t, "The answer is 4.", resp.Text(), "text blocks concatenate")
	assert.Equal(t, provider.FinishStop, resp.Choices[0].FinishReason)
	assert.Equal(t, int64(20), resp.Usage.PromptTokens)
	assert.Equal(t, int64(26), resp.Usage.TotalTokens)
}

func TestCompleteDefaultsMaxTokens(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	p := New("test-key", WithBaseURL(srv.URL))
	_, err := p.Complete(context.Background(), provider.NewRequest("claude-3-5-haiku-20241022", provider.User("hi")))
	require.NoError(t, err)
	assert.Equal(t, float64(defaultMaxTokens), gotBody["max_tokens"])
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"rate limited"}}`))
	}))
	defer srv.Close()

	p := New("test-key", WithBaseURL(srv.URL))
	_, err := p.Complete(context.Background(), provider.NewRequest("claude-3-opus-20240229", provider.User("hi")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "429")
}

func TestParseStopReasons(t *testing.T) {
	assert.Equal(t, provider.FinishLength, convertStopReason("max_tokens"))
	assert.Equal(t, provider.FinishStop, convertStopReason("end_turn"))
	assert.Equal(t, provider.FinishStop, convertStopReason("stop_sequence"))
}

func TestCapabilities(t *testing.T) {
	p := New("test-key")
	assert.Equal(t, "anthropic", p.Name())
	assert.EqualValues(t, 200000, p.Capabilities().ContextWindow)
	assert.Contains(t, p.SupportedModels(), "claude-3-5-sonnet-20241022")
	assert.Positive(t, p.RateLimits().TokensPerMinute)
}
