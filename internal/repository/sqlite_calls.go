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

const callColumns = `c.id, c.external_call_ref, c.strategy_version_id, COALESCE(v.version, ''), c.transcript, c.outcome,
	c.duration_seconds, c.customer_number, c.analysis, c.metadata, c.created_at, c.updated_at`

const callFrom = ` FROM calls c LEFT JOIN strategy_versions v ON v.id = c.strategy_version_id `

func scanCall(row interface{ Scan(...interface{}) error }) (*domain.CallRecord, error) {
	var c domain.CallRecord
	var customer, analysis, metadata sql.NullString
	if err := row.Scan(&c.ID, &c.ExternalCallRef, &c.StrategyVersionID, &c.AgentVersion, &c.Transcript, &c.Outcome,
		&c.DurationSeconds, &customer, &analysis, &metadata, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.CustomerNumber = customer.String
	if analysis.Valid {
		c.Analysis = json.RawMessage(analysis.String)
	}
	if metadata.Valid {
		c.Metadata = json.RawMessage(metadata.String)
	}
	return &c, nil
}

func getCall(ctx context.Context, q querier, where string, args ...interface{}) (*domain.CallRecord, error) {
	c, err := scanCall(q.QueryRowContext(ctx, `SELECT `+callColumns+callFrom+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func listCalls(ctx context.Context, q querier, where string, args ...interface{}) ([]domain.CallRecord, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+callColumns+callFrom+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []domain.CallRecord
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, *c)
	}
	return calls, rows.Err()
}

// CreateCallRecord inserts a call record. It returns false, without error, when a
// record with the same external reference already exists.
func (s *SQLiteStore) CreateCallRecord(ctx context.Context, rec *domain.CallRecord) (bool, error) {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Outcome == "" {
		rec.Outcome = domain.OutcomePending
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (id, external_call_ref, strategy_version_id, transcript, outcome, duration_seconds, customer_number, analysis, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_call_ref) DO NOTHING`,
		rec.ID, rec.ExternalCallRef, rec.StrategyVersionID, rec.Transcript, rec.Outcome, rec.DurationSeconds,
		nullString(rec.CustomerNumber), nullStringBytes(rec.Analysis), nullStringBytes(rec.Metadata), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetCallRecord retrieves a call record by ID.
func (s *SQLiteStore) GetCallRecord(ctx context.Context, id string) (*domain.CallRecord, error) {
	return getCall(ctx, s.db, `WHERE c.id = ?`, id)
}

// GetCallRecordByExternalRef retrieves a call record by its external reference.
func (s *SQLiteStore) GetCallRecordByExternalRef(ctx context.Context, ref string) (*domain.CallRecord, error) {
	return getCall(ctx, s.db, `WHERE c.external_call_ref = ?`, ref)
}

// ListRecentCalls returns the newest calls first.
func (s *SQLiteStore) ListRecentCalls(ctx context.Context, limit int) ([]domain.CallRecord, error) {
	return listCalls(ctx, s.db, `ORDER BY c.created_at DESC, c.rowid DESC LIMIT ?`, limit)
}

// ListDecidedCalls returns the newest calls with a terminal outcome first.
func (s *SQLiteStore) ListDecidedCalls(ctx context.Context, limit int) ([]domain.CallRecord, error) {
	return listCalls(ctx, s.db, `WHERE c.outcome != 'pending' ORDER BY c.created_at DESC, c.rowid DESC LIMIT ?`, limit)
}

// ListAnalyzedCalls returns the newest analysed calls of a version first.
func (s *SQLiteStore) ListAnalyzedCalls(ctx context.Context, versionID string, limit int) ([]domain.CallRecord, error) {
	return listCalls(ctx, s.db,
		`WHERE c.strategy_version_id = ? AND c.analysis IS NOT NULL ORDER BY c.created_at DESC, c.rowid DESC LIMIT ?`,
		versionID, limit)
}

// UpdateCallAnalysis stores the analysis document of a call.
func (s *SQLiteStore) UpdateCallAnalysis(ctx context.Context, id string, analysis json.RawMessage) error {
	res, err := s.db.ExecContext(ctx, `UPDATE calls SET analysis = ?, updated_at = ? WHERE id = ?`,
		nullStringBytes(analysis), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("call %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SettleCallOutcome moves a pending call to a terminal outcome and counts it
// against its version, in one transaction. A call that is already decided is
// left alone and reported with Changed=false.
func (s *SQLiteStore) SettleCallOutcome(ctx context.Context, id string, outcome domain.CallOutcome) (*OutcomeChange, error) {
	if !outcome.IsTerminal() {
		return nil, fmt.Errorf("%w: outcome %q", domain.ErrInvalidInput, outcome)
	}
	change := &OutcomeChange{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE calls SET outcome = ?, updated_at = ? WHERE id = ? AND outcome = 'pending'`,
			outcome, time.Now().UTC(), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		call, err := getCall(ctx, tx, `WHERE c.id = ?`, id)
		if err != nil {
			return err
		}
		if call == nil {
			return fmt.Errorf("call %s: %w", id, domain.ErrNotFound)
		}
		change.Call = call
		if n == 0 {
			change.Version, err = getVersion(ctx, tx, `WHERE id = ?`, call.StrategyVersionID)
			return err
		}
		change.Changed = true
		change.Counted = true
		change.Version, err = recordOutcome(ctx, tx, call.StrategyVersionID, outcome)
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// CorrectCallOutcome overwrites a call outcome by hand and keeps the version
// counters consistent: a pending call is counted, a flipped call moves one
// booking, and the same value is a no-op.
func (s *SQLiteStore) CorrectCallOutcome(ctx context.Context, id string, outcome domain.CallOutcome) (*OutcomeChange, error) {
	if !outcome.IsTerminal() {
		return nil, fmt.Errorf("%w: outcome %q", domain.ErrInvalidInput, outcome)
	}
	change := &OutcomeChange{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		call, err := getCall(ctx, tx, `WHERE c.id = ?`, id)
		if err != nil {
			return err
		}
		if call == nil {
			return fmt.Errorf("call %s: %w", id, domain.ErrNotFound)
		}
		previous := call.Outcome
		if previous == outcome {
			change.Call = call
			change.Version, err = getVersion(ctx, tx, `WHERE id = ?`, call.StrategyVersionID)
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `UPDATE calls SET outcome = ?, updated_at = ? WHERE id = ?`, outcome, now, id); err != nil {
			return err
		}
		call.Outcome = outcome
		call.UpdatedAt = now
		change.Call = call
		change.Changed = true

		switch {
		case previous == domain.OutcomePending:
			change.Counted = true
			change.Version, err = recordOutcome(ctx, tx, call.StrategyVersionID, outcome)
		case outcome == domain.OutcomeBooked:
			change.Version, err = adjustBookings(ctx, tx, call.StrategyVersionID, 1)
		default:
			change.Version, err = adjustBookings(ctx, tx, call.StrategyVersionID, -1)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}
