package llm

import "github.com/adam-a-i/ruya/internal/logger"

// ModeMock selects the mock client.
const ModeMock = "MOCK"

// NewLLMClient creates an LLM client based on mode. It returns nil when no
// credentials are configured, which callers treat as "service not configured".
func NewLLMClient(mode string, cfg Config, log *logger.Logger) LLMClient {
	if mode == ModeMock {
		log.Info("LLM_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}

	client := NewClient(cfg)
	if !client.Configured() {
		log.Warn("reasoning service not configured", "base_url", cfg.BaseURL)
		return nil
	}
	return client
}
