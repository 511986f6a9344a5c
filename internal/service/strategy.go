package service

import (
	"context"
	"fmt"

	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/prompt"
)

// CurrentStrategy returns the active version and the prompt rendered from it.
func (s *Service) CurrentStrategy(ctx context.Context) (*domain.CurrentStrategyResponse, error) {
	v, err := s.activeVersion(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.CurrentStrategyResponse{Version: v, Prompt: prompt.Render(v.Content)}, nil
}

// ListVersions returns every strategy version, newest first.
func (s *Service) ListVersions(ctx context.Context) ([]domain.StrategyVersion, error) {
	versions, err := s.store.ListVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// OverallStats sums the counters of every version.
func (s *Service) OverallStats(ctx context.Context) (*domain.OverallStats, error) {
	versions, err := s.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	out := &domain.OverallStats{VersionsCreated: len(versions)}
	for _, v := range versions {
		out.TotalCalls += v.TotalCalls
		out.TotalBookings += v.TotalBookings
		if v.IsActive && out.CurrentVersion == "" {
			out.CurrentVersion = v.Version
		}
	}
	out.OverallConversionRate = domain.ConversionRate(out.TotalCalls, out.TotalBookings)
	return out, nil
}

// CompareVersions reports the conversion change from tag1 to tag2.
func (s *Service) CompareVersions(ctx context.Context, tag1, tag2 string) (*domain.VersionComparison, error) {
	if tag1 == "" || tag2 == "" {
		return nil, fmt.Errorf("%w: version1 and version2 are required", domain.ErrInvalidInput)
	}
	v1, err := s.versionByTag(ctx, tag1)
	if err != nil {
		return nil, err
	}
	v2, err := s.versionByTag(ctx, tag2)
	if err != nil {
		return nil, err
	}
	return &domain.VersionComparison{
		Version1:    v1,
		Version2:    v2,
		Improvement: v2.ConversionRate - v1.ConversionRate,
	}, nil
}

func (s *Service) versionByTag(ctx context.Context, tag string) (*domain.StrategyVersion, error) {
	v, err := s.store.GetVersionByTag(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to get version %s: %w", tag, err)
	}
	if v == nil {
		return nil, fmt.Errorf("version %s: %w", tag, domain.ErrNotFound)
	}
	return v, nil
}

// RecentCalls returns the newest call records.
func (s *Service) RecentCalls(ctx context.Context, limit int) ([]domain.CallRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	calls, err := s.store.ListRecentCalls(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	return calls, nil
}

// UpdateCallOutcome corrects a call outcome by hand. A pending call that gets
// counted by the correction goes through the mutation trigger like any other.
func (s *Service) UpdateCallOutcome(ctx context.Context, callID string, req domain.OutcomeUpdateRequest) (*domain.OutcomeUpdateResponse, error) {
	outcome, err := domain.ParseTerminalOutcome(req.Outcome)
	if err != nil {
		return nil, err
	}
	change, err := s.store.CorrectCallOutcome(ctx, callID, outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to update outcome: %w", err)
	}

	resp := &domain.OutcomeUpdateResponse{Call: change.Call, Version: change.Version, Changed: change.Changed}
	if change.Counted {
		jobID, err := s.scheduleMutationCheck(ctx, change.Version)
		if err != nil {
			s.log.Warn("failed to schedule mutation check", "call_id", callID, "error", err)
		}
		resp.MutationJobID = jobID
	}
	return resp, nil
}

// dueForMutation reports whether a freshly counted version row crosses the threshold.
func (s *Service) dueForMutation(v *domain.StrategyVersion) bool {
	return v != nil && v.IsActive && v.TotalCalls > 0 && v.TotalCalls%s.config.MutationThreshold == 0
}

// scheduleMutationCheck enqueues a mutation check when v is due. It returns
// the job id, or "" when nothing was scheduled.
func (s *Service) scheduleMutationCheck(ctx context.Context, v *domain.StrategyVersion) (string, error) {
	if !s.dueForMutation(v) {
		return "", nil
	}
	job, err := s.pipeline.Enqueue(ctx, domain.JobTypeMutationCheck, v.ID)
	if err != nil {
		return "", err
	}
	s.log.Info("mutation check scheduled", "version", v.Version, "total_calls", v.TotalCalls, "job_id", job.ID)
	return job.ID, nil
}
