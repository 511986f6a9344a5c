package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/adam-a-i/ruya/internal/adapter/llm"
	"github.com/adam-a-i/ruya/internal/domain"
)

const (
	refineMaxTokens   = 600
	refineTemperature = 0.7

	refineSystemPrompt = `You are an expert sales coach for a voice AI that pitches real estate. You are given a call transcript and, when available, its evaluation.

Respond with a JSON object only, with exactly these keys:
- "agentFeedback": 2-3 sentences of direct feedback to the agent on what went wrong and what to do better next time.
- "improvedPrompt": a short, concrete prompt update (1-3 sentences) the agent should follow on the next call.
- "nextPitchSummary": 2-4 sentences on exactly how the next pitch should go: opening line, how to handle the objection, and a clear call to action.`
)

// FallbackRefinement is returned when no reasoning service is configured.
func FallbackRefinement(sessionID string) *domain.RefineResponse {
	return &domain.RefineResponse{
		SessionID:        sessionID,
		ImprovedPrompt:   "Acknowledge timing; offer one short market insight with no commitment. Ask for email or WhatsApp.",
		AgentFeedback:    "Coaching is unavailable because the reasoning service is not configured.",
		NextPitchSummary: "The agent will acknowledge the client's timing, offer a single non-committal market insight, and ask for the preferred channel (email or WhatsApp).",
		Fallback:         true,
	}
}

// Refine asks for coaching on an ended session and stores the improved prompt.
// Without a reasoning service it returns the fallback payload together with
// ErrServiceUnavailable.
func (s *Service) Refine(ctx context.Context, sessionID string) (*domain.RefineResponse, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State.IsLive() {
		return nil, fmt.Errorf("%w: end the session before refining it", domain.ErrInvalidTransition)
	}
	if s.llmClient == nil {
		return FallbackRefinement(sessionID), fmt.Errorf("reasoning service: %w", domain.ErrServiceUnavailable)
	}

	lines, err := s.store.ListTranscript(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcript: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: transcript is empty", domain.ErrInvalidInput)
	}
	insights, err := s.store.GetInsights(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get insights: %w", err)
	}

	from := session.State
	if err := s.moveState(ctx, sessionID, from, domain.SessionStateRefining); err != nil {
		return nil, err
	}
	revert := func() {
		if _, err := s.store.UpdateSessionState(ctx, sessionID, domain.SessionStateRefining, from); err != nil {
			s.log.Error("failed to restore session state", "session_id", sessionID, "state", from, "error", err)
		}
	}

	content, err := s.chat(ctx, []llm.ChatMessage{
		{Role: "system", Content: refineSystemPrompt},
		{Role: "user", Content: buildRefinePrompt(RenderTranscript(lines), insights)},
	}, refineTemperature, refineMaxTokens, true)
	if err != nil {
		revert()
		return nil, err
	}

	advice := domain.ParseCoachingAdvice(content)
	if err := s.store.SetSessionRefinedPrompt(ctx, sessionID, advice.ImprovedPrompt); err != nil {
		revert()
		return nil, fmt.Errorf("failed to store refined prompt: %w", err)
	}
	if err := s.moveState(ctx, sessionID, domain.SessionStateRefining, domain.SessionStateRefined); err != nil {
		s.log.Warn("failed to mark session refined", "session_id", sessionID, "error", err)
	}

	return &domain.RefineResponse{
		SessionID:        sessionID,
		ImprovedPrompt:   advice.ImprovedPrompt,
		AgentFeedback:    advice.AgentFeedback,
		NextPitchSummary: advice.NextPitchSummary,
	}, nil
}

func buildRefinePrompt(transcript string, insights *domain.CallInsights) string {
	var b strings.Builder
	b.WriteString("TRANSCRIPT:\n")
	b.WriteString(transcript)
	if insights != nil {
		b.WriteString("\n\nEVALUATION:\n")
		if len(insights.Objections) > 0 {
			fmt.Fprintf(&b, "- Objections: %s\n", strings.Join(insights.Objections, ", "))
		}
		if insights.DropOffPoint != "" {
			fmt.Fprintf(&b, "- Drop-off point: %s\n", insights.DropOffPoint)
		}
		fmt.Fprintf(&b, "- Engagement: %d/10\n", insights.EngagementScore)
		if insights.OutcomeSummary != "" {
			fmt.Fprintf(&b, "- Outcome: %s\n", insights.OutcomeSummary)
		}
	}
	return b.String()
}
