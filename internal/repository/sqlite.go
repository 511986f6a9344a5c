package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adam-a-i/ruya/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS strategy_versions (
			id TEXT PRIMARY KEY,
			version TEXT NOT NULL UNIQUE,
			strategy TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 0,
			total_calls INTEGER NOT NULL DEFAULT 0,
			total_bookings INTEGER NOT NULL DEFAULT 0,
			conversion_rate REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_strategy_versions_active ON strategy_versions(is_active, created_at)`,
		`CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			external_call_ref TEXT NOT NULL UNIQUE,
			strategy_version_id TEXT NOT NULL,
			transcript TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL DEFAULT 'pending',
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			customer_number TEXT,
			analysis TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (strategy_version_id) REFERENCES strategy_versions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_version_created ON calls(strategy_version_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_created ON calls(created_at)`,
		`CREATE TABLE IF NOT EXISTS call_sessions (
			id TEXT PRIMARY KEY,
			strategy_version_id TEXT NOT NULL,
			contact TEXT NOT NULL,
			state TEXT NOT NULL,
			ring_status TEXT,
			ring_ref TEXT,
			ring_error TEXT,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (strategy_version_id) REFERENCES strategy_versions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS transcript_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (session_id, ordinal),
			FOREIGN KEY (session_id) REFERENCES call_sessions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS call_insights (
			session_id TEXT PRIMARY KEY,
			sentiment_changes TEXT NOT NULL,
			objections TEXT NOT NULL,
			drop_off_point TEXT NOT NULL DEFAULT '',
			engagement_score INTEGER NOT NULL,
			outcome_summary TEXT NOT NULL DEFAULT '',
			appointment_booked INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES call_sessions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS pipeline_jobs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			ref TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_jobs_status ON pipeline_jobs(status, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Added after the first schema; SQLite has limited ALTER TABLE support.
	if err := s.ensureColumn("call_sessions", "refined_prompt", "ALTER TABLE call_sessions ADD COLUMN refined_prompt TEXT"); err != nil {
		return err
	}

	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction and commits when fn returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const versionColumns = `id, version, strategy, is_active, total_calls, total_bookings, conversion_rate, created_at`

func scanVersion(row interface{ Scan(...interface{}) error }) (*domain.StrategyVersion, error) {
	var v domain.StrategyVersion
	var content string
	if err := row.Scan(&v.ID, &v.Version, &content, &v.IsActive, &v.TotalCalls, &v.TotalBookings, &v.ConversionRate, &v.CreatedAt); err != nil {
		return nil, err
	}
	strategy, err := domain.DecodeStrategy([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", v.Version, err)
	}
	v.Content = strategy
	return &v, nil
}

func getVersion(ctx context.Context, q querier, where string, args ...interface{}) (*domain.StrategyVersion, error) {
	v, err := scanVersion(q.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM strategy_versions `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func insertVersion(ctx context.Context, q querier, v *domain.StrategyVersion) error {
	content, err := json.Marshal(v.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy: %w", err)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.IsActive = true
	_, err = q.ExecContext(ctx,
		`INSERT INTO strategy_versions (`+versionColumns+`) VALUES (?, ?, ?, 1, ?, ?, ?, ?)`,
		v.ID, v.Version, string(content), v.TotalCalls, v.TotalBookings, v.ConversionRate, v.CreatedAt)
	return err
}

// CreateVersion inserts an active version without touching other rows.
func (s *SQLiteStore) CreateVersion(ctx context.Context, v *domain.StrategyVersion) error {
	return insertVersion(ctx, s.db, v)
}

// GetActiveVersion returns the most recently created active version.
func (s *SQLiteStore) GetActiveVersion(ctx context.Context) (*domain.StrategyVersion, error) {
	return getVersion(ctx, s.db, `WHERE is_active = 1 ORDER BY created_at DESC, rowid DESC LIMIT 1`)
}

// GetVersion retrieves a version by ID.
func (s *SQLiteStore) GetVersion(ctx context.Context, id string) (*domain.StrategyVersion, error) {
	return getVersion(ctx, s.db, `WHERE id = ?`, id)
}

// GetVersionByTag retrieves a version by its tag, e.g. "v1.2".
func (s *SQLiteStore) GetVersionByTag(ctx context.Context, tag string) (*domain.StrategyVersion, error) {
	return getVersion(ctx, s.db, `WHERE version = ?`, tag)
}

// ListVersions returns all versions, newest first.
func (s *SQLiteStore) ListVersions(ctx context.Context) ([]domain.StrategyVersion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+versionColumns+` FROM strategy_versions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []domain.StrategyVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// CountActiveVersions returns how many rows are flagged active.
func (s *SQLiteStore) CountActiveVersions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM strategy_versions WHERE is_active = 1`).Scan(&n)
	return n, err
}

// DeactivateVersion clears the active flag on exactly one row.
func (s *SQLiteStore) DeactivateVersion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE strategy_versions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("version %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ActivateSuccessor inserts next as the only active version, provided the
// active version is still expectedActiveID. Nothing is written otherwise.
func (s *SQLiteStore) ActivateSuccessor(ctx context.Context, expectedActiveID string, next *domain.StrategyVersion) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getVersion(ctx, tx, `WHERE is_active = 1 ORDER BY created_at DESC, rowid DESC LIMIT 1`)
		if err != nil {
			return err
		}
		if current == nil || current.ID != expectedActiveID {
			return domain.ErrActiveVersionChanged
		}
		if err := insertVersion(ctx, tx, next); err != nil {
			return fmt.Errorf("failed to insert version %s: %w", next.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE strategy_versions SET is_active = 0 WHERE id != ? AND is_active = 1`, next.ID); err != nil {
			return fmt.Errorf("failed to deactivate previous versions: %w", err)
		}
		return nil
	})
}

func recordOutcome(ctx context.Context, q querier, versionID string, outcome domain.CallOutcome) (*domain.StrategyVersion, error) {
	booked := 0
	if outcome == domain.OutcomeBooked {
		booked = 1
	}
	res, err := q.ExecContext(ctx, `UPDATE strategy_versions SET
			total_calls = total_calls + 1,
			total_bookings = total_bookings + ?,
			conversion_rate = CAST(total_bookings + ? AS REAL) / (total_calls + 1)
		WHERE id = ?`, booked, booked, versionID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("version %s: %w", versionID, domain.ErrNotFound)
	}
	return getVersion(ctx, q, `WHERE id = ?`, versionID)
}

func adjustBookings(ctx context.Context, q querier, versionID string, delta int) (*domain.StrategyVersion, error) {
	_, err := q.ExecContext(ctx, `UPDATE strategy_versions SET
			total_bookings = MAX(0, total_bookings + ?),
			conversion_rate = CASE WHEN total_calls > 0 THEN CAST(MAX(0, total_bookings + ?) AS REAL) / total_calls ELSE 0 END
		WHERE id = ?`, delta, delta, versionID)
	if err != nil {
		return nil, err
	}
	return getVersion(ctx, q, `WHERE id = ?`, versionID)
}

// RecordCallOutcome counts one call against a version and returns the updated row.
func (s *SQLiteStore) RecordCallOutcome(ctx context.Context, versionID string, outcome domain.CallOutcome) (*domain.StrategyVersion, error) {
	var v *domain.StrategyVersion
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		v, err = recordOutcome(ctx, tx, versionID, outcome)
		return err
	})
	return v, err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
