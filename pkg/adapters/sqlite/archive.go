// Package sqlite archives terminal sessions in a SQLite database.
//
// It expects an *sql.DB that uses a SQLite driver. Open registers
// "modernc.org/sqlite"; callers that bring their own *sql.DB must import a
// driver themselves.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/ports"
)

// ErrRecordNotFound is returned when an archive record does not exist.
var ErrRecordNotFound = errors.New("archive record not found")

// Record is one archived session.
type Record struct {
	ID         string              `json:"record_id"`
	SessionID  string              `json:"session_id"`
	Variant    domain.Variant      `json:"variant"`
	State      domain.StateID      `json:"state"`
	Escalated  bool                `json:"escalated"`
	Severity   int                 `json:"severity"`
	Fields     map[string]any      `json:"fields"`
	Audit      []domain.AuditEntry `json:"audit"`
	ArchivedAt time.Time           `json:"archived_at"`
}

// Archive is a ports.Archiver backed by SQLite.
type Archive struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.Archiver = (*Archive)(nil)

// Open opens (or creates) the database at path and initializes the schema.
// Use ":memory:" for a throwaway archive.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	a, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// New initializes the required schema in db and returns an Archive.
func New(db *sql.DB) (*Archive, error) {
	a := &Archive{db: db, now: time.Now}
	if err := a.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return a, nil
}

func (a *Archive) initSchema() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS session_archive (
			record_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			variant TEXT NOT NULL,
			state TEXT NOT NULL,
			escalated INTEGER NOT NULL,
			severity INTEGER NOT NULL,
			fields BLOB,
			audit BLOB,
			archived_at INTEGER NOT NULL
		);`,
	)
	return err
}

// Archive stores the session and returns its record ID.
// Archiving the same session twice returns the existing record.
func (a *Archive) Archive(ctx context.Context, s *domain.Session) (string, error) {
	fields, err := json.Marshal(s.Fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}
	audit, err := json.Marshal(s.Audit)
	if err != nil {
		return "", fmt.Errorf("failed to encode audit trail: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT record_id FROM session_archive WHERE session_id = ?`, s.ID).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", err
	}

	recordID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO session_archive (record_id, session_id, variant, state, escalated, severity, fields, audit, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recordID,
		s.ID,
		string(s.Variant),
		string(s.State),
		s.Escalated,
		s.Severity,
		fields,
		audit,
		a.now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert archive record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return recordID, nil
}

const selectRecord = `SELECT record_id, session_id, variant, state, escalated, severity, fields, audit, archived_at FROM session_archive`

// Get loads a record by ID.
func (a *Archive) Get(ctx context.Context, recordID string) (*Record, error) {
	row := a.db.QueryRowContext(ctx, selectRecord+` WHERE record_id = ?`, recordID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return rec, err
}

// List returns the most recent records first, up to limit (0 means all).
func (a *Archive) List(ctx context.Context, limit int) ([]*Record, error) {
	query := selectRecord + ` ORDER BY archived_at DESC, record_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec              Record
		variant, state   string
		fields, audit    []byte
		archivedAtMillis int64
	)
	if err := sc.Scan(&rec.ID, &rec.SessionID, &variant, &state, &rec.Escalated, &rec.Severity, &fields, &audit, &archivedAtMillis); err != nil {
		return nil, err
	}
	rec.Variant = domain.Variant(variant)
	rec.State = domain.StateID(state)
	rec.ArchivedAt = time.UnixMilli(archivedAtMillis).UTC()

	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields: %w", err)
		}
	}
	if len(audit) > 0 {
		if err := json.Unmarshal(audit, &rec.Audit); err != nil {
			return nil, fmt.Errorf("failed to decode audit trail: %w", err)
		}
	}
	return &rec, nil
}
