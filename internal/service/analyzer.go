package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adam-a-i/ruya/internal/adapter/llm"
	"github.com/adam-a-i/ruya/internal/domain"
)

const (
	analysisTemperature = 0.7
	analysisMaxTokens   = 1800

	insightsSystemPrompt = "You are an expert sales call analyst. Return JSON only."
)

// AnalyzeSession evaluates a session transcript and upserts its insights.
func (s *Service) AnalyzeSession(ctx context.Context, sessionID string) (*domain.CallInsights, error) {
	lines, err := s.store.ListTranscript(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcript: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: transcript is empty", domain.ErrInvalidInput)
	}

	content, err := s.chat(ctx, []llm.ChatMessage{
		{Role: "system", Content: insightsSystemPrompt},
		{Role: "user", Content: buildInsightsPrompt(RenderTranscript(lines))},
	}, analysisTemperature, analysisMaxTokens, true)
	if err != nil {
		return nil, err
	}

	insights := domain.ParseInsights(sessionID, content)
	if err := s.store.UpsertInsights(ctx, &insights); err != nil {
		return nil, fmt.Errorf("failed to store insights: %w", err)
	}
	return &insights, nil
}

// RenderTranscript labels each line with its speaker, in ordinal order.
func RenderTranscript(lines []domain.TranscriptLine) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Role.Label())
		b.WriteString(": ")
		b.WriteString(l.Content)
	}
	return b.String()
}

func buildInsightsPrompt(transcript string) string {
	return `Analyze this real estate sales call transcript. The objective was to book a property viewing.

TRANSCRIPT:
` + transcript + `

Return a JSON object with exactly these keys:
{
  "sentiment_changes": ["how the prospect's sentiment moved, in order"],
  "objections": ["objections raised"],
  "drop_off_point": "where the prospect disengaged, or empty",
  "engagement_score": 1-10,
  "outcome_summary": "one or two sentences",
  "appointment_booked": true or false
}`
}

// analyzeCallRecord analyses a webhook call, stores the analysis and settles
// the outcome from it. It returns the mutation job id when one was scheduled.
func (s *Service) analyzeCallRecord(ctx context.Context, call *domain.CallRecord) (string, error) {
	content, err := s.chat(ctx, []llm.ChatMessage{
		{Role: "system", Content: insightsSystemPrompt},
		{Role: "user", Content: buildCallAnalysisPrompt(call.Transcript, call.Outcome)},
	}, analysisTemperature, analysisMaxTokens, true)
	if err != nil {
		return "", err
	}

	analysis := domain.ParseCallAnalysis(content)
	if err := s.store.UpdateCallAnalysis(ctx, call.ID, domain.MarshalAnalysis(analysis)); err != nil {
		return "", fmt.Errorf("failed to store analysis: %w", err)
	}

	change, err := s.store.SettleCallOutcome(ctx, call.ID, domain.OutcomeFromBooking(analysis.AppointmentBooked))
	if err != nil {
		return "", fmt.Errorf("failed to record outcome: %w", err)
	}
	if !change.Counted {
		return "", nil
	}
	return s.scheduleMutationCheck(ctx, change.Version)
}

func buildCallAnalysisPrompt(transcript string, outcome domain.CallOutcome) string {
	if strings.TrimSpace(transcript) == "" {
		transcript = "(no transcript)"
	}
	return fmt.Sprintf(`Analyze this real estate sales call transcript and provide structured insights.

TRANSCRIPT:
%s

OUTCOME: %s

Return a JSON object with this structure:
{
  "objections": ["list of objections raised"],
  "emotional_tone": "skeptical/interested/neutral/hostile",
  "engagement_score": 1-10,
  "conversion_probability": 0.0-1.0,
  "strengths": ["what the agent did well"],
  "weaknesses": ["what to improve"],
  "key_moments": ["critical moments"],
  "improvement_suggestions": ["specific improvements"],
  "appointment_booked": true or false,
  "outcome_summary": "one sentence"
}

Return valid JSON only.`, transcript, outcome)
}

// runAnalyzeCallJob handles an analyze_call job for the call id in job.Ref.
func (s *Service) runAnalyzeCallJob(ctx context.Context, job *domain.PipelineJob) error {
	call, err := s.store.GetCallRecord(ctx, job.Ref)
	if err != nil {
		return fmt.Errorf("failed to get call: %w", err)
	}
	if call == nil {
		return fmt.Errorf("call %s: %w", job.Ref, domain.ErrNotFound)
	}
	mutationJobID, err := s.analyzeCallRecord(ctx, call)
	if err != nil {
		return err
	}
	s.log.Info("call analysed", "call_id", call.ID, "mutation_job_id", mutationJobID)
	return nil
}

// sessionDuration is the whole seconds between start and end, zero while live.
func sessionDuration(session *domain.CallSession) int {
	if session.EndedAt == nil {
		return 0
	}
	d := session.EndedAt.Sub(session.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
