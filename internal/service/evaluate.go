package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adam-a-i/ruya/internal/domain"
)

// Evaluate analyses an ended session and feeds the result into the strategy
// counters. Each stage reports on its own; a later stage is skipped when an
// earlier one it depends on failed.
func (s *Service) Evaluate(ctx context.Context, sessionID string) (*domain.EvaluateResponse, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State.IsLive() {
		return nil, fmt.Errorf("%w: end the session before evaluating it", domain.ErrInvalidTransition)
	}
	from := session.State
	if err := s.moveState(ctx, sessionID, from, domain.SessionStateAnalyzing); err != nil {
		return nil, err
	}
	log := s.log.With("session_id", sessionID)

	resp := &domain.EvaluateResponse{
		SessionID:       sessionID,
		CallRecord:      domain.StageResult{Skipped: true},
		OutcomeRecorded: domain.StageResult{Skipped: true},
		MutationCheck:   domain.StageResult{Skipped: true},
	}

	insights, err := s.AnalyzeSession(ctx, sessionID)
	if err != nil {
		if _, revertErr := s.store.UpdateSessionState(ctx, sessionID, domain.SessionStateAnalyzing, from); revertErr != nil {
			log.Error("failed to restore session state", "state", from, "error", revertErr)
		}
		if errors.Is(err, domain.ErrServiceUnavailable) {
			return nil, err
		}
		log.Warn("analysis failed", "error", err)
		resp.Analysis.Error = err.Error()
		return resp, nil
	}
	resp.Insights = insights
	resp.Analysis.OK = true
	if err := s.moveState(ctx, sessionID, domain.SessionStateAnalyzing, domain.SessionStateInsightsStored); err != nil {
		log.Warn("failed to mark insights stored", "error", err)
	}

	call, err := s.recordSessionCall(ctx, session, insights)
	if err != nil {
		log.Warn("failed to record session call", "error", err)
		resp.CallRecord = domain.StageResult{Error: err.Error()}
		return resp, nil
	}
	resp.CallRecord = domain.StageResult{OK: true}

	change, err := s.store.SettleCallOutcome(ctx, call.ID, domain.OutcomeFromBooking(insights.AppointmentBooked))
	if err != nil {
		log.Warn("failed to record outcome", "call_id", call.ID, "error", err)
		resp.OutcomeRecorded = domain.StageResult{Error: err.Error()}
		return resp, nil
	}
	// Re-evaluating a decided call must not count it twice.
	resp.OutcomeRecorded = domain.StageResult{OK: true, Skipped: !change.Counted}
	if !change.Counted {
		return resp, nil
	}

	jobID, err := s.scheduleMutationCheck(ctx, change.Version)
	switch {
	case err != nil:
		log.Warn("failed to schedule mutation check", "error", err)
		resp.MutationCheck = domain.StageResult{Error: err.Error()}
	case jobID == "":
		resp.MutationCheck = domain.StageResult{OK: true, Skipped: true}
	default:
		resp.MutationCheck = domain.StageResult{OK: true}
		resp.MutationJobID = jobID
	}
	return resp, nil
}

// recordSessionCall upserts the call record keyed by the session reference and
// stores the insights on it as its analysis.
func (s *Service) recordSessionCall(ctx context.Context, session *domain.CallSession, insights *domain.CallInsights) (*domain.CallRecord, error) {
	analysis := domain.MarshalAnalysis(domain.AnalysisFromInsights(*insights))
	ref := session.ExternalCallRef()

	existing, err := s.store.GetCallRecordByExternalRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}
	if existing == nil {
		lines, err := s.store.ListTranscript(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list transcript: %w", err)
		}
		rec := &domain.CallRecord{
			ID:                uuid.New().String(),
			ExternalCallRef:   ref,
			StrategyVersionID: session.StrategyVersionID,
			Transcript:        RenderTranscript(lines),
			Outcome:           domain.OutcomePending,
			DurationSeconds:   sessionDuration(session),
			CustomerNumber:    session.Contact.Phone,
			Analysis:          analysis,
			CreatedAt:         time.Now().UTC(),
		}
		created, err := s.store.CreateCallRecord(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("failed to create call record: %w", err)
		}
		if created {
			return rec, nil
		}
		// Lost a race with a concurrent evaluation; fall through to the update.
		existing, err = s.store.GetCallRecordByExternalRef(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to reload call record: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("call record %s: %w", ref, domain.ErrNotFound)
		}
	}

	if err := s.store.UpdateCallAnalysis(ctx, existing.ID, analysis); err != nil {
		return nil, fmt.Errorf("failed to update call analysis: %w", err)
	}
	existing.Analysis = analysis
	return existing, nil
}
