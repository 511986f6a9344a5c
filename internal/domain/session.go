package domain

import (
	"fmt"
	"time"
)

// SessionState represents where a call session is in its lifecycle.
type SessionState string

const (
	SessionStateIdle           SessionState = "idle"
	SessionStateInCall         SessionState = "in_call"
	SessionStateEnded          SessionState = "ended"
	SessionStateTranscribed    SessionState = "transcribed"
	SessionStateAnalyzing      SessionState = "analyzing"
	SessionStateInsightsStored SessionState = "insights_stored"
	SessionStateRefining       SessionState = "refining"
	SessionStateRefined        SessionState = "refined"
)

// Failed analysis or refinement falls back to the state it started from,
// so those edges are listed alongside the forward ones.
var sessionTransitions = map[SessionState][]SessionState{
	SessionStateIdle:           {SessionStateInCall, SessionStateEnded},
	SessionStateInCall:         {SessionStateEnded},
	SessionStateEnded:          {SessionStateTranscribed, SessionStateAnalyzing, SessionStateRefining},
	SessionStateTranscribed:    {SessionStateTranscribed, SessionStateAnalyzing, SessionStateRefining},
	SessionStateAnalyzing:      {SessionStateInsightsStored, SessionStateEnded, SessionStateTranscribed, SessionStateRefined},
	SessionStateInsightsStored: {SessionStateAnalyzing, SessionStateRefining},
	SessionStateRefining:       {SessionStateRefined, SessionStateEnded, SessionStateTranscribed, SessionStateInsightsStored},
	SessionStateRefined:        {SessionStateAnalyzing, SessionStateRefining},
}

// CanTransition reports whether moving from s to next is allowed.
func (s SessionState) CanTransition(next SessionState) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates a state change.
func (s SessionState) Transition(next SessionState) error {
	if !s.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

// IsLive reports whether the session still accepts turns.
func (s SessionState) IsLive() bool {
	return s == SessionStateIdle || s == SessionStateInCall
}

// ContactSnapshot is the contact as it looked when the session started.
type ContactSnapshot struct {
	Name   string            `json:"name,omitempty"`
	Phone  string            `json:"phone,omitempty"`
	Email  string            `json:"email,omitempty"`
	Region string            `json:"region,omitempty"`
	City   string            `json:"city,omitempty"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// CallSession is one live conversation bound to a strategy version.
type CallSession struct {
	ID                string          `json:"id"`
	StrategyVersionID string          `json:"strategy_version_id"`
	Contact           ContactSnapshot `json:"contact"`
	State             SessionState    `json:"state"`
	RingStatus        RingStatus      `json:"ring_status,omitempty"`
	RingRef           string          `json:"ring_ref,omitempty"`
	RingError         string          `json:"ring_error,omitempty"`
	RefinedPrompt     string          `json:"refined_prompt,omitempty"`
	StartedAt         time.Time       `json:"started_at"`
	EndedAt           *time.Time      `json:"ended_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Ended reports whether the session has been closed.
func (s *CallSession) Ended() bool {
	return s.EndedAt != nil
}

// ExternalCallRef is the call record key used for a session's outcome.
func (s *CallSession) ExternalCallRef() string {
	return "session:" + s.ID
}

// TranscriptLine is one utterance in a session.
type TranscriptLine struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"created_at"`
}
