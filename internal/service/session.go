package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adam-a-i/ruya/internal/adapter/llm"
	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/prompt"
	"github.com/adam-a-i/ruya/policy"
)

const (
	turnTemperature = 0.7
	turnMaxTokens   = 300
)

// StartSession persists a new session bound to a strategy version and, when
// asked, rings the contact. Ringing is best effort: its result is reported
// next to the session and never fails creation.
func (s *Service) StartSession(ctx context.Context, req domain.StartSessionRequest) (*domain.StartSessionResponse, error) {
	var (
		version *domain.StrategyVersion
		err     error
	)
	if req.StrategyVersionID != "" {
		version, err = s.store.GetVersion(ctx, req.StrategyVersionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get version: %w", err)
		}
		if version == nil {
			return nil, fmt.Errorf("version %s: %w", req.StrategyVersionID, domain.ErrNotFound)
		}
	} else {
		version, err = s.activeVersion(ctx)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	session := &domain.CallSession{
		ID:                uuid.New().String(),
		StrategyVersionID: version.ID,
		Contact:           req.Contact,
		State:             domain.SessionStateIdle,
		RingStatus:        domain.RingStatusSkipped,
		StartedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log := s.log.With("session_id", session.ID, "version", version.Version)
	log.Info("session started")

	if req.Ring {
		status, ref, ringErr := s.ring(ctx, session.Contact)
		session.RingStatus, session.RingRef, session.RingError = status, ref, ringErr
		if err := s.store.UpdateSessionRing(ctx, session.ID, status, ref, ringErr); err != nil {
			log.Warn("failed to record ring result", "error", err)
		}
		if ringErr != "" {
			log.Warn("ring failed", "ring_status", status, "ring_error", ringErr, "phone", session.Contact.Phone)
		}
	}

	return &domain.StartSessionResponse{
		Session:    session,
		RingStatus: session.RingStatus,
		RingRef:    session.RingRef,
		RingError:  session.RingError,
	}, nil
}

// ring checks the dial policy and places the call.
func (s *Service) ring(ctx context.Context, contact domain.ContactSnapshot) (domain.RingStatus, string, string) {
	to := strings.TrimSpace(contact.Phone)
	if s.policy != nil {
		decision, reason, err := s.policy.Evaluate(ctx, policy.DialInput{
			To:        to,
			From:      s.config.TwilioFromNumber,
			Region:    contact.Region,
			Blocklist: s.config.DialBlocklist,
		})
		if err != nil {
			return domain.RingStatusFailed, "", "dial policy: " + err.Error()
		}
		if decision == policy.DecisionBlock {
			return domain.RingStatusBlocked, "", "blocked by dial policy: " + reason
		}
	}
	if s.dialer == nil {
		return domain.RingStatusFailed, "", "telephony " + domain.ErrServiceUnavailable.Error()
	}

	dialCtx := ctx
	if timeout := s.config.TelephonyTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	exec, err := s.dialer.PlaceCall(dialCtx, to, "")
	if err != nil {
		return domain.RingStatusFailed, "", err.Error()
	}
	return domain.RingStatusPlaced, exec.SID, ""
}

// GetSession returns a session by id.
func (s *Service) GetSession(ctx context.Context, id string) (*domain.CallSession, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return session, nil
}

func (s *Service) turnLock(sessionID string) *sync.Mutex {
	mu, _ := s.turnLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// NextAgentTurn asks the agent for its reply to the next user message. Only
// one turn per session may be in flight; a concurrent call gets
// ErrTurnInFlight. A reply carrying the end-call token ends the session.
func (s *Service) NextAgentTurn(ctx context.Context, sessionID string, req domain.TurnRequest) (*domain.TurnResponse, error) {
	mu := s.turnLock(sessionID)
	if !mu.TryLock() {
		return nil, domain.ErrTurnInFlight
	}
	defer mu.Unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.turnLocks.CompareAndDelete(sessionID, mu)
		}
		return nil, err
	}
	if session.Ended() || !session.State.IsLive() {
		s.turnLocks.CompareAndDelete(sessionID, mu)
		return nil, domain.ErrSessionEnded
	}
	version, err := s.store.GetVersion(ctx, session.StrategyVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	if version == nil {
		return nil, fmt.Errorf("version %s: %w", session.StrategyVersionID, domain.ErrNotFound)
	}

	messages, err := buildTurnMessages(prompt.Render(version.Content), req)
	if err != nil {
		return nil, err
	}

	if session.State == domain.SessionStateIdle {
		if _, err := s.store.UpdateSessionState(ctx, sessionID, domain.SessionStateIdle, domain.SessionStateInCall); err != nil {
			s.log.Warn("failed to mark session in call", "session_id", sessionID, "error", err)
		}
	}

	content, err := s.chat(ctx, messages, turnTemperature, turnMaxTokens, false)
	if err != nil {
		return nil, err
	}
	reply := prompt.ParseReply(content)

	if reply.EndCall {
		if _, err := s.EndSession(ctx, sessionID); err != nil {
			s.log.Error("failed to end session after end-call reply", "session_id", sessionID, "error", err)
		}
	}
	return &domain.TurnResponse{Text: reply.Text, EndCall: reply.EndCall}, nil
}

func buildTurnMessages(systemPrompt string, req domain.TurnRequest) ([]llm.ChatMessage, error) {
	messages := make([]llm.ChatMessage, 0, len(req.History)+2)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: systemPrompt})
	for _, h := range req.History {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		role, err := domain.ParseRole(h.Role)
		if err != nil {
			return nil, err
		}
		messages = append(messages, llm.ChatMessage{Role: role.ChatRole(), Content: h.Content})
	}

	opening := req.Opening || prompt.IsOpening(req.Message)
	switch {
	case opening && len(messages) > 1:
		return nil, fmt.Errorf("%w: opening is only valid before the first turn", domain.ErrInvalidInput)
	case opening:
		messages = append(messages, llm.ChatMessage{Role: "user", Content: prompt.OpeningInstruction})
	case strings.TrimSpace(req.Message) == "":
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	default:
		messages = append(messages, llm.ChatMessage{Role: "user", Content: req.Message})
	}
	return messages, nil
}

// EndSession marks the session ended. Ending twice keeps the first timestamp.
func (s *Service) EndSession(ctx context.Context, sessionID string) (*domain.CallSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Ended() {
		s.turnLocks.Delete(sessionID)
		return session, nil
	}
	changed, err := s.store.EndSession(ctx, sessionID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	// Turns started after this point see the ended session and never need the lock.
	s.turnLocks.Delete(sessionID)
	if changed {
		s.log.Info("session ended", "session_id", sessionID)
	}
	return s.GetSession(ctx, sessionID)
}

// AppendTranscript stores lines in order. Appending to an ended session marks it transcribed.
func (s *Service) AppendTranscript(ctx context.Context, sessionID string, req domain.AppendTranscriptRequest) (*domain.AppendTranscriptResponse, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: lines are required", domain.ErrInvalidInput)
	}
	lines := make([]domain.TranscriptLine, 0, len(req.Lines))
	for i, in := range req.Lines {
		role, err := domain.ParseRole(in.Role)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		if strings.TrimSpace(in.Content) == "" {
			return nil, fmt.Errorf("%w: line %d has no content", domain.ErrInvalidInput, i)
		}
		lines = append(lines, domain.TranscriptLine{Role: role, Content: in.Content})
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.AppendTranscriptLines(ctx, sessionID, lines)
	if err != nil {
		return nil, fmt.Errorf("failed to append transcript: %w", err)
	}
	if session.State == domain.SessionStateEnded {
		if _, err := s.store.UpdateSessionState(ctx, sessionID, domain.SessionStateEnded, domain.SessionStateTranscribed); err != nil {
			s.log.Warn("failed to mark session transcribed", "session_id", sessionID, "error", err)
		}
	}
	return &domain.AppendTranscriptResponse{Saved: len(saved), Lines: saved}, nil
}

// GetTranscript returns a session's lines in order.
func (s *Service) GetTranscript(ctx context.Context, sessionID string) ([]domain.TranscriptLine, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	lines, err := s.store.ListTranscript(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcript: %w", err)
	}
	return lines, nil
}

// moveState validates and applies a transition. It fails with
// ErrInvalidTransition when another request moved the session first.
func (s *Service) moveState(ctx context.Context, sessionID string, from, to domain.SessionState) error {
	if err := from.Transition(to); err != nil {
		return err
	}
	ok, err := s.store.UpdateSessionState(ctx, sessionID, from, to)
	if err != nil {
		return fmt.Errorf("failed to update session state: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: session is no longer %s", domain.ErrInvalidTransition, from)
	}
	return nil
}
