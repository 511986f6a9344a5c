// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adam-a-i/ruya/internal/domain"
)

// OutcomeChange describes the effect of settling or correcting a call outcome.
type OutcomeChange struct {
	Call *domain.CallRecord
	// Version is the strategy version row after any counter change.
	Version *domain.StrategyVersion
	// Counted is true when the call was added to the version's totals by this change.
	Counted bool
	// Changed is false when the outcome already had the requested value.
	Changed bool
}

// Store defines the interface for data persistence.
//
// Getters return nil, nil when the row does not exist.
type Store interface {
	// Strategy version operations
	CreateVersion(ctx context.Context, v *domain.StrategyVersion) error
	GetActiveVersion(ctx context.Context) (*domain.StrategyVersion, error)
	GetVersion(ctx context.Context, id string) (*domain.StrategyVersion, error)
	GetVersionByTag(ctx context.Context, tag string) (*domain.StrategyVersion, error)
	ListVersions(ctx context.Context) ([]domain.StrategyVersion, error)
	CountActiveVersions(ctx context.Context) (int, error)
	DeactivateVersion(ctx context.Context, id string) error
	ActivateSuccessor(ctx context.Context, expectedActiveID string, next *domain.StrategyVersion) error
	RecordCallOutcome(ctx context.Context, versionID string, outcome domain.CallOutcome) (*domain.StrategyVersion, error)

	// Call record operations
	CreateCallRecord(ctx context.Context, rec *domain.CallRecord) (bool, error)
	GetCallRecord(ctx context.Context, id string) (*domain.CallRecord, error)
	GetCallRecordByExternalRef(ctx context.Context, ref string) (*domain.CallRecord, error)
	ListRecentCalls(ctx context.Context, limit int) ([]domain.CallRecord, error)
	ListDecidedCalls(ctx context.Context, limit int) ([]domain.CallRecord, error)
	ListAnalyzedCalls(ctx context.Context, versionID string, limit int) ([]domain.CallRecord, error)
	UpdateCallAnalysis(ctx context.Context, id string, analysis json.RawMessage) error
	SettleCallOutcome(ctx context.Context, id string, outcome domain.CallOutcome) (*OutcomeChange, error)
	CorrectCallOutcome(ctx context.Context, id string, outcome domain.CallOutcome) (*OutcomeChange, error)

	// Session operations
	CreateSession(ctx context.Context, session *domain.CallSession) error
	GetSession(ctx context.Context, id string) (*domain.CallSession, error)
	EndSession(ctx context.Context, id string, at time.Time) (bool, error)
	UpdateSessionState(ctx context.Context, id string, from, to domain.SessionState) (bool, error)
	UpdateSessionRing(ctx context.Context, id string, status domain.RingStatus, ref, errMsg string) error
	SetSessionRefinedPrompt(ctx context.Context, id string, prompt string) error

	// Transcript operations
	AppendTranscriptLines(ctx context.Context, sessionID string, lines []domain.TranscriptLine) ([]domain.TranscriptLine, error)
	ListTranscript(ctx context.Context, sessionID string) ([]domain.TranscriptLine, error)

	// Insight operations
	UpsertInsights(ctx context.Context, in *domain.CallInsights) error
	GetInsights(ctx context.Context, sessionID string) (*domain.CallInsights, error)
	CountInsights(ctx context.Context, sessionID string) (int, error)

	// Pipeline job operations
	CreateJob(ctx context.Context, job *domain.PipelineJob) error
	GetJob(ctx context.Context, id string) (*domain.PipelineJob, error)
	UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error

	// Lifecycle
	Close() error
}
