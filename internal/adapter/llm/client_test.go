package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adam-a-i/ruya/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCreateChatCompletion(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []Choice{{Message: &ChatMessage{Role: "assistant", Content: `{"ok":true}`}}},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "gpt-4o"})
	resp, err := c.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Messages:       []ChatMessage{{Role: "user", Content: "hi"}},
		ResponseFormat: JSONObjectFormat(),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content())
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
}

func TestClientAzureDeployment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-02-15-preview", r.URL.Query().Get("api-version"))
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []Choice{{Message: &ChatMessage{Content: "hello"}}},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "azure-key", AzureDeployment: "gpt-4o"})
	resp, err := c.CreateChatCompletion(context.Background(), &ChatCompletionRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content())
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.CreateChatCompletion(context.Background(), &ChatCompletionRequest{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "slow down", apiErr.Message)
}

func TestNewLLMClient(t *testing.T) {
	log := logger.Nop()
	assert.IsType(t, &MockClient{}, NewLLMClient(ModeMock, Config{}, log))
	assert.Nil(t, NewLLMClient("", Config{BaseURL: "https://api.openai.com"}, log))
	assert.IsType(t, &Client{}, NewLLMClient("", Config{BaseURL: "https://api.openai.com", APIKey: "k"}, log))
}

func TestMockClientCannedReplies(t *testing.T) {
	m := NewMockClient()
	resp, err := m.CreateChatCompletion(context.Background(), &ChatCompletionRequest{Messages: []ChatMessage{
		{Role: "system", Content: "prompt"},
		{Role: "user", Content: "I'm not interested"},
	}})
	require.NoError(t, err)
	assert.Contains(t, resp.Content(), "[END_CALL]")
	assert.Len(t, m.Requests(), 1)
}
