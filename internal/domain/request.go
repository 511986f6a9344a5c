package domain

// StartSessionRequest starts a call session.
type StartSessionRequest struct {
	StrategyVersionID string          `json:"strategy_version_id,omitempty"`
	Contact           ContactSnapshot `json:"contact"`
	Ring              bool            `json:"ring,omitempty"`
}

// StartSessionResponse reports the new session and the separate ring result.
type StartSessionResponse struct {
	Session    *CallSession `json:"session"`
	RingStatus RingStatus   `json:"ring_status"`
	RingRef    string       `json:"ring_ref,omitempty"`
	RingError  string       `json:"ring_error,omitempty"`
}

// TurnMessage is one prior turn supplied by the caller.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest asks the agent for its next reply.
type TurnRequest struct {
	Message string        `json:"message"`
	Opening bool          `json:"opening,omitempty"`
	History []TurnMessage `json:"history,omitempty"`
}

// TurnResponse is the agent's reply with the end-call sentinel removed.
type TurnResponse struct {
	Text    string `json:"text"`
	EndCall bool   `json:"end_call"`
}

// TranscriptLineInput is one line submitted for appending.
type TranscriptLineInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AppendTranscriptRequest appends lines to a session transcript.
type AppendTranscriptRequest struct {
	Lines []TranscriptLineInput `json:"lines"`
}

// AppendTranscriptResponse lists the stored lines.
type AppendTranscriptResponse struct {
	Saved int              `json:"saved"`
	Lines []TranscriptLine `json:"lines"`
}

// StageResult reports one pipeline stage independently of the others.
type StageResult struct {
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EvaluateResponse is the per-stage result of evaluating a session.
type EvaluateResponse struct {
	SessionID       string        `json:"session_id"`
	Insights        *CallInsights `json:"insights,omitempty"`
	Analysis        StageResult   `json:"analysis"`
	CallRecord      StageResult   `json:"call_record"`
	OutcomeRecorded StageResult   `json:"outcome_recorded"`
	MutationCheck   StageResult   `json:"mutation_check"`
	MutationJobID   string        `json:"mutation_job_id,omitempty"`
}

// RefineResponse is the coaching result for the next pitch.
type RefineResponse struct {
	SessionID        string `json:"session_id"`
	ImprovedPrompt   string `json:"improvedPrompt"`
	AgentFeedback    string `json:"agentFeedback"`
	NextPitchSummary string `json:"nextPitchSummary"`
	Fallback         bool   `json:"fallback,omitempty"`
}

// CallCompletedEvent is the inbound webhook body. Both the flat form and the
// voice platform's envelope are accepted.
type CallCompletedEvent struct {
	CallID         string        `json:"call_id"`
	Transcript     string        `json:"transcript"`
	StartedAt      string        `json:"started_at"`
	EndedAt        string        `json:"ended_at"`
	CustomerNumber string        `json:"customer_number"`
	Call           *EnvelopeCall `json:"call,omitempty"`
}

// EnvelopeCall is the nested call object sent by the voice platform.
type EnvelopeCall struct {
	ID         string `json:"id"`
	Transcript string `json:"transcript"`
	StartedAt  string `json:"startedAt"`
	EndedAt    string `json:"endedAt"`
	Customer   *struct {
		Number string `json:"number"`
	} `json:"customer,omitempty"`
}

// WebhookAck is returned before analysis runs.
type WebhookAck struct {
	Success bool   `json:"success"`
	CallID  string `json:"call_id"`
	JobID   string `json:"job_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// MutateRequest triggers a mutation check by hand.
type MutateRequest struct {
	Force bool `json:"force,omitempty"`
}

// MutationResult describes what a mutation check did.
type MutationResult struct {
	Mutated      bool     `json:"mutated"`
	SkipReason   string   `json:"skip_reason,omitempty"`
	OldVersion   string   `json:"old_version,omitempty"`
	NewVersion   string   `json:"new_version,omitempty"`
	ChangesMade  []string `json:"changes_made,omitempty"`
	Reasoning    string   `json:"reasoning,omitempty"`
	Published    bool     `json:"published"`
	PublishError string   `json:"publish_error,omitempty"`
}

// OutcomeUpdateRequest corrects a call outcome.
type OutcomeUpdateRequest struct {
	Outcome string `json:"outcome"`
}

// OverallStats aggregates all versions.
type OverallStats struct {
	TotalCalls            int     `json:"total_calls"`
	TotalBookings         int     `json:"total_bookings"`
	OverallConversionRate float64 `json:"overall_conversion_rate"`
	VersionsCreated       int     `json:"versions_created"`
	CurrentVersion        string  `json:"current_version"`
}

// VersionComparison compares two versions' conversion rates.
type VersionComparison struct {
	Version1    *StrategyVersion `json:"version1"`
	Version2    *StrategyVersion `json:"version2"`
	Improvement float64          `json:"improvement"`
}

// ObjectionCount is one entry in the trend report.
type ObjectionCount struct {
	Objection string `json:"objection"`
	Count     int    `json:"count"`
}

// TrendReport compares recent and older call performance.
type TrendReport struct {
	Status               string           `json:"status"`
	Trend                string           `json:"trend,omitempty"`
	TotalCallsAnalyzed   int              `json:"total_calls_analyzed"`
	RecentConversionRate float64          `json:"recent_conversion_rate"`
	OlderConversionRate  float64          `json:"older_conversion_rate"`
	TopObjections        []ObjectionCount `json:"top_objections"`
}

// SpeechRequest asks for synthesized audio.
type SpeechRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
}

// CurrentStrategyResponse is the active version with its rendered prompt.
type CurrentStrategyResponse struct {
	Version *StrategyVersion `json:"version"`
	Prompt  string           `json:"prompt"`
}

// OutcomeUpdateResponse reports a manual outcome correction.
type OutcomeUpdateResponse struct {
	Call          *CallRecord      `json:"call"`
	Version       *StrategyVersion `json:"version,omitempty"`
	Changed       bool             `json:"changed"`
	MutationJobID string           `json:"mutation_job_id,omitempty"`
}
