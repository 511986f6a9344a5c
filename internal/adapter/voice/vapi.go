// Package voice publishes the active system prompt to the live voice assistant.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Publisher pushes a rendered system prompt to the voice assistant.
type Publisher interface {
	Publish(ctx context.Context, systemPrompt string) error
}

type Config struct {
	APIKey      string
	AssistantID string
	BaseURL     string
	Model       string
	Timeout     time.Duration
}

// VapiClient updates a Vapi assistant's model messages.
type VapiClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewVapiClient returns nil when the assistant is not configured.
func NewVapiClient(cfg Config) *VapiClient {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.AssistantID) == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.vapi.ai"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &VapiClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type assistantPatch struct {
	Model assistantModel `json:"model"`
}

type assistantModel struct {
	Provider string           `json:"provider"`
	Model    string           `json:"model"`
	Messages []assistantEntry `json:"messages"`
}

type assistantEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("vapi http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Publish replaces the assistant's system message.
func (c *VapiClient) Publish(ctx context.Context, systemPrompt string) error {
	body, err := json.Marshal(assistantPatch{Model: assistantModel{
		Provider: "openai",
		Model:    c.cfg.Model,
		Messages: []assistantEntry{{Role: "system", Content: systemPrompt}},
	}})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/assistant/%s", c.cfg.BaseURL, url.PathEscape(c.cfg.AssistantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
