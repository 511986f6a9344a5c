package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adam-a-i/ruya/internal/domain"
)

// CreateSession creates a new call session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.CallSession) error {
	contact, err := json.Marshal(session.Contact)
	if err != nil {
		return fmt.Errorf("failed to marshal contact: %w", err)
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	session.UpdatedAt = session.StartedAt
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO call_sessions (id, strategy_version_id, contact, state, ring_status, ring_ref, ring_error, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.StrategyVersionID, string(contact), session.State, nullString(string(session.RingStatus)),
		nullString(session.RingRef), nullString(session.RingError), session.StartedAt, session.UpdatedAt)
	return err
}

// GetSession retrieves a call session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.CallSession, error) {
	var session domain.CallSession
	var contact string
	var ringStatus, ringRef, ringError, refined sql.NullString
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, strategy_version_id, contact, state, ring_status, ring_ref, ring_error, refined_prompt, started_at, ended_at, updated_at
		FROM call_sessions WHERE id = ?`, id).Scan(
		&session.ID, &session.StrategyVersionID, &contact, &session.State, &ringStatus, &ringRef, &ringError, &refined,
		&session.StartedAt, &endedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(contact), &session.Contact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contact: %w", err)
	}
	session.RingStatus = domain.RingStatus(ringStatus.String)
	session.RingRef = ringRef.String
	session.RingError = ringError.String
	session.RefinedPrompt = refined.String
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}
	return &session, nil
}

// EndSession sets ended_at once. It returns false when the session had already ended.
func (s *SQLiteStore) EndSession(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE call_sessions SET ended_at = ?, state = ?, updated_at = ? WHERE id = ? AND ended_at IS NULL`,
		at, domain.SessionStateEnded, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpdateSessionState moves a session from one state to another. It returns
// false when the session was not in the expected state.
func (s *SQLiteStore) UpdateSessionState(ctx context.Context, id string, from, to domain.SessionState) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE call_sessions SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		to, time.Now().UTC(), id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpdateSessionRing records the result of dialing the contact.
func (s *SQLiteStore) UpdateSessionRing(ctx context.Context, id string, status domain.RingStatus, ref, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE call_sessions SET ring_status = ?, ring_ref = ?, ring_error = ?, updated_at = ? WHERE id = ?`,
		status, nullString(ref), nullString(errMsg), time.Now().UTC(), id)
	return err
}

// SetSessionRefinedPrompt stores the coaching prompt produced for a session.
func (s *SQLiteStore) SetSessionRefinedPrompt(ctx context.Context, id string, prompt string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE call_sessions SET refined_prompt = ?, updated_at = ? WHERE id = ?`,
		nullString(prompt), time.Now().UTC(), id)
	return err
}

// AppendTranscriptLines appends lines in order. Ordinals continue from the last
// stored line of the session.
func (s *SQLiteStore) AppendTranscriptLines(ctx context.Context, sessionID string, lines []domain.TranscriptLine) ([]domain.TranscriptLine, error) {
	out := make([]domain.TranscriptLine, 0, len(lines))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var last int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(ordinal), 0) FROM transcript_lines WHERE session_id = ?`, sessionID).Scan(&last); err != nil {
			return err
		}
		now := time.Now().UTC()
		for i, line := range lines {
			line.SessionID = sessionID
			line.Ordinal = last + i + 1
			line.CreatedAt = now
			res, err := tx.ExecContext(ctx,
				`INSERT INTO transcript_lines (session_id, role, content, ordinal, created_at) VALUES (?, ?, ?, ?, ?)`,
				sessionID, line.Role, line.Content, line.Ordinal, line.CreatedAt)
			if err != nil {
				return err
			}
			if line.ID, err = res.LastInsertId(); err != nil {
				return err
			}
			out = append(out, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListTranscript returns a session's lines in append order.
func (s *SQLiteStore) ListTranscript(ctx context.Context, sessionID string) ([]domain.TranscriptLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, ordinal, created_at FROM transcript_lines WHERE session_id = ? ORDER BY ordinal ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.TranscriptLine
	for rows.Next() {
		var l domain.TranscriptLine
		if err := rows.Scan(&l.ID, &l.SessionID, &l.Role, &l.Content, &l.Ordinal, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// UpsertInsights writes the insights of a session, replacing any previous row.
func (s *SQLiteStore) UpsertInsights(ctx context.Context, in *domain.CallInsights) error {
	sentiment, _ := json.Marshal(in.SentimentChanges)
	objections, _ := json.Marshal(in.Objections)
	now := time.Now().UTC()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_insights (session_id, sentiment_changes, objections, drop_off_point, engagement_score, outcome_summary, appointment_booked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			sentiment_changes = excluded.sentiment_changes,
			objections = excluded.objections,
			drop_off_point = excluded.drop_off_point,
			engagement_score = excluded.engagement_score,
			outcome_summary = excluded.outcome_summary,
			appointment_booked = excluded.appointment_booked,
			updated_at = excluded.updated_at`,
		in.SessionID, string(sentiment), string(objections), in.DropOffPoint, in.EngagementScore, in.OutcomeSummary,
		in.AppointmentBooked, in.CreatedAt, in.UpdatedAt)
	return err
}

// GetInsights retrieves the insights of a session.
func (s *SQLiteStore) GetInsights(ctx context.Context, sessionID string) (*domain.CallInsights, error) {
	var in domain.CallInsights
	var sentiment, objections string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, sentiment_changes, objections, drop_off_point, engagement_score, outcome_summary, appointment_booked, created_at, updated_at
		FROM call_insights WHERE session_id = ?`, sessionID).Scan(
		&in.SessionID, &sentiment, &objections, &in.DropOffPoint, &in.EngagementScore, &in.OutcomeSummary,
		&in.AppointmentBooked, &in.CreatedAt, &in.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sentiment), &in.SentimentChanges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sentiment_changes: %w", err)
	}
	if err := json.Unmarshal([]byte(objections), &in.Objections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal objections: %w", err)
	}
	return &in, nil
}

// CountInsights returns the number of insight rows for a session (0 or 1).
func (s *SQLiteStore) CountInsights(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM call_insights WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// CreateJob creates a pipeline job.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *domain.PipelineJob) error {
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	if job.Status == "" {
		job.Status = domain.JobStatusQueued
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_jobs (id, type, ref, status, error, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, job.Ref, job.Status, nullString(job.Error), job.CreatedAt, job.UpdatedAt)
	return err
}

// GetJob retrieves a pipeline job by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*domain.PipelineJob, error) {
	var job domain.PipelineJob
	var errMsg sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, ref, status, error, created_at, updated_at FROM pipeline_jobs WHERE id = ?`, id).Scan(
		&job.ID, &job.Type, &job.Ref, &job.Status, &errMsg, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job.Error = errMsg.String
	return &job, nil
}

// UpdateJobStatus records a job status change.
func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, nullString(errMsg), time.Now().UTC(), id)
	return err
}
