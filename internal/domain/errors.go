package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrSessionEnded         = errors.New("session has ended")
	ErrTurnInFlight         = errors.New("a turn is already in progress for this session")
	ErrInvalidTransition    = errors.New("invalid session state transition")
	ErrServiceUnavailable   = errors.New("service not configured")
	ErrActiveVersionChanged = errors.New("active strategy version changed")
	ErrNoActiveVersion      = errors.New("no active strategy version")
	ErrBadCollaboratorReply = errors.New("unusable reply from collaborator")
)
