package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adam-a-i/ruya/internal/domain"
)

// normalizeEvent folds the voice platform envelope into the flat form. Flat
// fields win when both are present.
func normalizeEvent(ev domain.CallCompletedEvent) domain.CallCompletedEvent {
	if ev.Call == nil {
		return ev
	}
	c := ev.Call
	if ev.CallID == "" {
		ev.CallID = c.ID
	}
	if ev.Transcript == "" {
		ev.Transcript = c.Transcript
	}
	if ev.StartedAt == "" {
		ev.StartedAt = c.StartedAt
	}
	if ev.EndedAt == "" {
		ev.EndedAt = c.EndedAt
	}
	if ev.CustomerNumber == "" && c.Customer != nil {
		ev.CustomerNumber = c.Customer.Number
	}
	return ev
}

// callDuration returns whole seconds between two RFC 3339 timestamps, or 0
// when either is missing or unreadable.
func callDuration(startedAt, endedAt string) int {
	if startedAt == "" || endedAt == "" {
		return 0
	}
	start, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return 0
	}
	end, err := time.Parse(time.RFC3339Nano, endedAt)
	if err != nil {
		return 0
	}
	if d := end.Sub(start); d > 0 {
		return int(d / time.Second)
	}
	return 0
}

// HandleCallCompleted stores a completed call against the active version and
// queues its analysis. It returns before the analysis runs. Redelivered events
// map to the existing record.
func (s *Service) HandleCallCompleted(ctx context.Context, ev domain.CallCompletedEvent, raw json.RawMessage) (*domain.WebhookAck, error) {
	ev = normalizeEvent(ev)
	ev.CallID = strings.TrimSpace(ev.CallID)
	if ev.CallID == "" {
		return nil, fmt.Errorf("%w: call id is required", domain.ErrInvalidInput)
	}

	version, err := s.activeVersion(ctx)
	if err != nil {
		return nil, err
	}

	rec := &domain.CallRecord{
		ID:                uuid.New().String(),
		ExternalCallRef:   ev.CallID,
		StrategyVersionID: version.ID,
		Transcript:        ev.Transcript,
		Outcome:           domain.OutcomePending,
		DurationSeconds:   callDuration(ev.StartedAt, ev.EndedAt),
		CustomerNumber:    ev.CustomerNumber,
		Metadata:          raw,
	}
	created, err := s.store.CreateCallRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to create call record: %w", err)
	}
	log := s.log.With("external_call_ref", ev.CallID)

	if !created {
		existing, err := s.store.GetCallRecordByExternalRef(ctx, ev.CallID)
		if err != nil {
			return nil, fmt.Errorf("failed to get call record: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("call %s: %w", ev.CallID, domain.ErrNotFound)
		}
		ack := &domain.WebhookAck{Success: true, CallID: existing.ID, Message: "Call already received"}
		// Re-queue a redelivery whose first analysis never landed.
		if existing.Outcome == domain.OutcomePending && len(existing.Analysis) == 0 {
			job, err := s.pipeline.Enqueue(ctx, domain.JobTypeAnalyzeCall, existing.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to queue analysis: %w", err)
			}
			ack.JobID = job.ID
			ack.Message = "Call already received, analysis re-queued"
		}
		log.Info("duplicate call event", "call_id", existing.ID, "job_id", ack.JobID)
		return ack, nil
	}

	job, err := s.pipeline.Enqueue(ctx, domain.JobTypeAnalyzeCall, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to queue analysis: %w", err)
	}
	log.Info("call received", "call_id", rec.ID, "job_id", job.ID, "customer_number", ev.CustomerNumber)
	return &domain.WebhookAck{
		Success: true,
		CallID:  rec.ID,
		JobID:   job.ID,
		Message: "Call received and queued for analysis",
	}, nil
}
