// Package domain defines the core domain models for the voice sales agent.
package domain

import "fmt"

// CallOutcome is the result of a call from the booking point of view.
type CallOutcome string

const (
	OutcomePending   CallOutcome = "pending"
	OutcomeBooked    CallOutcome = "booked"
	OutcomeNotBooked CallOutcome = "not_booked"
)

// IsTerminal reports whether the outcome has been decided.
func (o CallOutcome) IsTerminal() bool {
	return o == OutcomeBooked || o == OutcomeNotBooked
}

// ParseTerminalOutcome accepts only booked or not_booked.
func ParseTerminalOutcome(s string) (CallOutcome, error) {
	o := CallOutcome(s)
	if !o.IsTerminal() {
		return "", fmt.Errorf("%w: outcome must be \"booked\" or \"not_booked\"", ErrInvalidInput)
	}
	return o, nil
}

// OutcomeFromBooking maps the analyzer's booking flag to an outcome.
func OutcomeFromBooking(booked bool) CallOutcome {
	if booked {
		return OutcomeBooked
	}
	return OutcomeNotBooked
}

// Role identifies the speaker of a transcript line.
type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// ParseRole normalizes a role. "client" and "assistant" are accepted aliases.
func ParseRole(s string) (Role, error) {
	switch s {
	case "agent", "assistant":
		return RoleAgent, nil
	case "user", "client":
		return RoleUser, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// ChatRole returns the role name used by the reasoning service.
func (r Role) ChatRole() string {
	if r == RoleAgent {
		return "assistant"
	}
	return "user"
}

// Label is the speaker prefix used when rendering a transcript.
func (r Role) Label() string {
	if r == RoleAgent {
		return "Agent"
	}
	return "User"
}

// JobType represents the kind of background pipeline job.
type JobType string

const (
	JobTypeAnalyzeCall   JobType = "analyze_call"
	JobTypeMutationCheck JobType = "mutation_check"
)

// JobStatus represents the status of a pipeline job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsFinal reports whether a job will not change status again.
func (s JobStatus) IsFinal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// RingStatus is the outcome of the best-effort dial on session start.
type RingStatus string

const (
	RingStatusSkipped RingStatus = "skipped"
	RingStatusPlaced  RingStatus = "placed"
	RingStatusBlocked RingStatus = "blocked"
	RingStatusFailed  RingStatus = "failed"
)
