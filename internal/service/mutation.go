package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adam-a-i/ruya/internal/adapter/llm"
	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/prompt"
)

const (
	mutationTemperature = 0.8
	mutationMaxTokens   = 2600

	mutationSystemPrompt = "You are a sales strategy optimizer for a real-estate phone sales agent. Return JSON only."
)

// Skip reasons reported in MutationResult.SkipReason.
const (
	SkipThresholdNotReached = "threshold_not_reached"
	SkipNoAnalyzedCalls     = "no_analyzed_calls"
	SkipVersionSuperseded   = "version_superseded"
)

// MutateStrategy runs a mutation check by hand. Without Force the active
// version must sit on a threshold boundary like the automatic trigger.
func (s *Service) MutateStrategy(ctx context.Context, req domain.MutateRequest) (*domain.MutationResult, error) {
	return s.mutate(ctx, "", !req.Force)
}

// runMutationCheckJob handles a mutation check scheduled for the version in job.Ref.
func (s *Service) runMutationCheckJob(ctx context.Context, job *domain.PipelineJob) error {
	res, err := s.mutate(ctx, job.Ref, false)
	if err != nil {
		return err
	}
	if res.Mutated {
		s.log.Info("strategy mutated", "old_version", res.OldVersion, "new_version", res.NewVersion, "published", res.Published)
	} else {
		s.log.Info("mutation skipped", "reason", res.SkipReason, "version_id", job.Ref)
	}
	return nil
}

// mutate evolves the active strategy. triggerVersionID, when set, must still be
// the active version. Mutations are serialized in-process and the store swap is
// a compare-and-swap against the version read at the start.
func (s *Service) mutate(ctx context.Context, triggerVersionID string, checkThreshold bool) (*domain.MutationResult, error) {
	res, next, err := s.proposeAndSwap(ctx, triggerVersionID, checkThreshold)
	if err != nil || next == nil {
		return res, err
	}

	if s.publisher == nil {
		s.log.Debug("voice delivery not configured, skipping publish", "version", next.Version)
		return res, nil
	}
	pubCtx := ctx
	if timeout := s.config.VoiceTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.publisher.Publish(pubCtx, prompt.Render(next.Content)); err != nil {
		// The new version stays active; the assistant catches up on the next publish.
		s.log.Error("failed to publish strategy", "version", next.Version, "error", err)
		res.PublishError = err.Error()
		return res, nil
	}
	res.Published = true
	return res, nil
}

func (s *Service) proposeAndSwap(ctx context.Context, triggerVersionID string, checkThreshold bool) (*domain.MutationResult, *domain.StrategyVersion, error) {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	current, err := s.activeVersion(ctx)
	if err != nil {
		return nil, nil, err
	}
	res := &domain.MutationResult{OldVersion: current.Version}

	if triggerVersionID != "" && current.ID != triggerVersionID {
		res.SkipReason = SkipVersionSuperseded
		return res, nil, nil
	}
	if checkThreshold && !s.dueForMutation(current) {
		res.SkipReason = SkipThresholdNotReached
		return res, nil, nil
	}

	calls, err := s.store.ListAnalyzedCalls(ctx, current.ID, s.config.MutationSampleSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list analysed calls: %w", err)
	}
	if len(calls) == 0 {
		res.SkipReason = SkipNoAnalyzedCalls
		return res, nil, nil
	}

	content, err := s.chat(ctx, []llm.ChatMessage{
		{Role: "system", Content: mutationSystemPrompt},
		{Role: "user", Content: buildMutationPrompt(current, calls)},
	}, mutationTemperature, mutationMaxTokens, true)
	if err != nil {
		return nil, nil, err
	}
	proposal, err := domain.ParseMutationProposal(content)
	if err != nil {
		return nil, nil, fmt.Errorf("mutation aborted: %w", err)
	}

	next := &domain.StrategyVersion{
		ID:        uuid.New().String(),
		Version:   domain.NextVersionTag(current.Version),
		Content:   proposal.NewStrategy.WithDefaults(current.Content),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.ActivateSuccessor(ctx, current.ID, next); err != nil {
		if errors.Is(err, domain.ErrActiveVersionChanged) {
			res.SkipReason = SkipVersionSuperseded
			return res, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to activate %s: %w", next.Version, err)
	}

	res.Mutated = true
	res.NewVersion = next.Version
	res.ChangesMade = proposal.ChangesMade
	res.Reasoning = proposal.Reasoning
	return res, next, nil
}

type analysedCall struct {
	Outcome  domain.CallOutcome `json:"outcome"`
	Analysis json.RawMessage    `json:"analysis"`
}

func buildMutationPrompt(current *domain.StrategyVersion, calls []domain.CallRecord) string {
	strategyJSON, _ := json.MarshalIndent(current.Content, "", "  ")
	samples := make([]analysedCall, 0, len(calls))
	for _, c := range calls {
		samples = append(samples, analysedCall{Outcome: c.Outcome, Analysis: c.Analysis})
	}
	analysesJSON, _ := json.MarshalIndent(samples, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT STRATEGY (%s):\n%s\n\n", current.Version, strategyJSON)
	fmt.Fprintf(&b, "CURRENT CONVERSION RATE: %.2f%%\n", current.ConversionRate*100)
	fmt.Fprintf(&b, "TOTAL CALLS: %d\n\n", current.TotalCalls)
	fmt.Fprintf(&b, "RECENT CALL ANALYSES (newest first):\n%s\n\n", analysesJSON)
	b.WriteString("Make 2-3 focused improvements and keep what already works.\n")
	b.WriteString("Return JSON:\n")
	b.WriteString(`{"changes_made": ["..."], "reasoning": "...", "new_strategy": {"description": "...", "opening": {"greeting": "...", "intro": "..."}, "qualification": {"questions": ["..."]}, "objection_handling": {"price": "...", "timing": "...", "not_interested": "..."}, "call_to_action": {"main_cta": "...", "alternative_cta": "..."}, "tone": {"style": "...", "pace": "...", "empathy": "..."}}}`)
	b.WriteString("\n\nReturn valid JSON only.")
	return b.String()
}
