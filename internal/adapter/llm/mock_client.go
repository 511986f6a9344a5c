package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockHandler produces the reply content for a request.
type MockHandler func(ctx context.Context, req *ChatCompletionRequest) (string, error)

// MockClient is a mock implementation of LLMClient for testing and offline runs.
type MockClient struct {
	mu       sync.Mutex
	handler  MockHandler
	requests []ChatCompletionRequest
}

// NewMockClient creates a mock client with canned replies.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// NewScriptedMockClient creates a mock client that answers with handler.
func NewScriptedMockClient(handler MockHandler) *MockClient {
	return &MockClient{handler: handler}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	handler := m.handler
	m.mu.Unlock()

	if handler == nil {
		handler = cannedReply
	}
	content, err := handler(ctx, req)
	if err != nil {
		return nil, err
	}

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      &ChatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     estimateTokens(req),
			CompletionTokens: len(content) / 4,
			TotalTokens:      estimateTokens(req) + len(content)/4,
		},
	}, nil
}

// Requests returns a copy of every request received so far.
func (m *MockClient) Requests() []ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatCompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// cannedReply answers by looking at the system prompt, so offline runs exercise
// every pipeline stage end to end.
func cannedReply(_ context.Context, req *ChatCompletionRequest) (string, error) {
	system := ""
	if len(req.Messages) > 0 && req.Messages[0].Role == "system" {
		system = strings.ToLower(req.Messages[0].Content)
	}

	switch {
	case strings.Contains(system, "strategy optimizer"):
		return `{"changes_made":["[MOCK] tightened the opening"],"reasoning":"[MOCK] shorter openings keep prospects on the line","new_strategy":{"opening":{"greeting":"Hi, this is Sarah from Premier Realty - do you have a quick minute?"}}}`, nil
	case strings.Contains(system, "sales coach"):
		return `{"agentFeedback":"[MOCK] Acknowledge the timeline before pitching.","improvedPrompt":"[MOCK] Lead with one question about their move date.","nextPitchSummary":"[MOCK] Open warmly, ask about timing, offer a 20-minute viewing."}`, nil
	case strings.Contains(system, "call analyst") || strings.Contains(system, "call evaluator"):
		return `{"sentiment_changes":["neutral","curious"],"objections":["timing"],"drop_off_point":"","engagement_score":6,"outcome_summary":"[MOCK] Prospect open to a follow-up.","appointment_booked":false,"emotional_tone":"neutral"}`, nil
	}

	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}
	lower := strings.ToLower(last)
	if strings.Contains(lower, "not interested") || strings.Contains(lower, "stop calling") {
		return "[MOCK] I understand, thank you for your time. Have a great day! [END_CALL]", nil
	}
	if last == "" {
		return "[MOCK] Hello!", nil
	}
	return fmt.Sprintf("[MOCK] Thanks for sharing. You said: %q. Would Thursday afternoon or Saturday morning work for a viewing?", last), nil
}

func estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}
