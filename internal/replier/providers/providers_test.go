package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"Happy to help!"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Settings{APIKey: "test-key", Model: "claude-test", MaxTokens: 180, Temperature: 0.7, BaseURL: srv.URL + "/"})
	text, err := p.Complete(context.Background(), "be nice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Happy to help!", text)
	assert.Equal(t, "claude-test", body["model"])
	assert.EqualValues(t, 180, body["max_tokens"])
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"cmpl_1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Sure thing"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Settings{APIKey: "test-key", Model: "gpt-test", MaxTokens: 180, BaseURL: srv.URL + "/"})
	text, err := p.Complete(context.Background(), "be nice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Sure thing", text)
}

func TestProviderErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"nope"}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Settings{APIKey: "k", Model: "m", MaxTokens: 10, BaseURL: srv.URL + "/"})
	_, err := p.Complete(context.Background(), "s", "p")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	p, err := New(ProviderOpenAI, Settings{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4o-mini", p.Model())

	_, err = New("gemini", Settings{})
	assert.EqualError(t, err, "unknown LLM provider: gemini")
}
