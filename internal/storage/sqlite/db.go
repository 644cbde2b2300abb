// Package sqlite persists complaints, the department registry, in-app
// notifications and classification history.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"smartgriev/internal/domain"
)

var (
	ErrNotFound               = errors.New("sqlite: record not found")
	ErrConcurrentModification = errors.New("sqlite: record modified concurrently")
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS departments (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		name             TEXT NOT NULL UNIQUE,
		zone             TEXT DEFAULT '',
		contact_email    TEXT DEFAULT '',
		contact_phone    TEXT DEFAULT '',
		slack_channel_id TEXT DEFAULT '',
		active           INTEGER NOT NULL DEFAULT 1,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS complaints (
		id               TEXT PRIMARY KEY,
		title            TEXT DEFAULT '',
		description      TEXT NOT NULL,
		original_text    TEXT DEFAULT '',
		language         TEXT DEFAULT '',
		category         TEXT DEFAULT '',
		department_id    INTEGER REFERENCES departments(id),
		department_code  TEXT DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'pending',
		priority         TEXT NOT NULL DEFAULT 'medium',
		escalated        INTEGER NOT NULL DEFAULT 0,
		escalated_at     DATETIME,
		escalation_count INTEGER NOT NULL DEFAULT 0,
		filed_by         TEXT DEFAULT '',
		internal_notes   TEXT NOT NULL DEFAULT '',
		version          INTEGER NOT NULL DEFAULT 1,
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_complaints_status_created ON complaints(status, created_at);

	CREATE TABLE IF NOT EXISTS notifications (
		id           TEXT PRIMARY KEY,
		complaint_id TEXT NOT NULL,
		recipient    TEXT NOT NULL,
		channel      TEXT NOT NULL,
		template_id  TEXT NOT NULL,
		context      TEXT DEFAULT '',
		created_at   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_complaint ON notifications(complaint_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient);

	CREATE TABLE IF NOT EXISTS classification_history (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		complaint_id  TEXT NOT NULL,
		department    TEXT NOT NULL,
		confidence    REAL NOT NULL,
		method        TEXT NOT NULL,
		llm_provider  TEXT DEFAULT '',
		reasoning     TEXT DEFAULT '',
		classified_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ch_complaint ON classification_history(complaint_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// migrate adds columns that arrived after the first complaints table.
func migrate(db *sql.DB) error {
	var colCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('complaints') WHERE name = 'urgency'`).Scan(&colCount); err != nil {
		return fmt.Errorf("sqlite: inspect complaints columns: %w", err)
	}
	if colCount == 0 {
		if _, err := db.Exec(`ALTER TABLE complaints ADD COLUMN urgency TEXT NOT NULL DEFAULT 'medium'`); err != nil {
			return fmt.Errorf("sqlite: add urgency column: %w", err)
		}
	}
	return nil
}

// Store wraps the database handle. All timestamps are written in UTC.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func Open(path string) (*Store, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	return New(db), nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

const complaintColumns = `id, title, description, original_text, language, category, department_id, department_code,
	status, priority, urgency, escalated, escalated_at, escalation_count, filed_by, internal_notes, version,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row rowScanner) (domain.Complaint, error) {
	var (
		c           domain.Complaint
		deptID      sql.NullInt64
		escalatedAt sql.NullTime
		code        string
		status      string
		priority    string
		urgency     string
	)
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.OriginalText, &c.Language, &c.Category, &deptID, &code,
		&status, &priority, &urgency, &c.Escalated, &escalatedAt, &c.EscalationCount, &c.FiledBy,
		&c.InternalNotes, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	c.DepartmentID = deptID.Int64
	c.DepartmentCode = domain.DepartmentCode(code)
	c.Status = domain.ComplaintStatus(status)
	c.Priority = domain.Priority(priority)
	c.Urgency = domain.Urgency(urgency)
	if escalatedAt.Valid {
		c.EscalatedAt = escalatedAt.Time
	}
	return c, nil
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// CreateComplaint inserts c, filling in ID, version, timestamps and
// default enum values when unset.
func (s *Store) CreateComplaint(ctx context.Context, c domain.Complaint) (domain.Complaint, error) {
	now := s.now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = domain.StatusPending
	}
	if c.Priority == "" {
		c.Priority = domain.PriorityMedium
	}
	if c.Urgency == "" {
		c.Urgency = domain.UrgencyMedium
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = now
	c.Version = 1

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO complaints (`+complaintColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Description, c.OriginalText, c.Language, c.Category, nullableID(c.DepartmentID),
		string(c.DepartmentCode), string(c.Status), string(c.Priority), string(c.Urgency), c.Escalated,
		nullableTime(c.EscalatedAt), c.EscalationCount, c.FiledBy, c.InternalNotes, c.Version,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return c, fmt.Errorf("sqlite: insert complaint: %w", err)
	}
	return c, nil
}

func (s *Store) GetComplaint(ctx context.Context, id string) (domain.Complaint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id)
	c, err := scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("sqlite: get complaint %s: %w", id, err)
	}
	return c, nil
}

// UpdateComplaintStatus moves a complaint to status and bumps its version.
func (s *Store) UpdateComplaintStatus(ctx context.Context, id string, status domain.ComplaintStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE complaints SET status = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		string(status), s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update status %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListComplaints returns complaints newest first. Empty status or priority
// does not filter.
func (s *Store) ListComplaints(ctx context.Context, status domain.ComplaintStatus, priority domain.Priority, limit int) ([]domain.Complaint, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE 1 = 1`
	args := []any{}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	if priority != "" {
		query += ` AND priority = ?`
		args = append(args, string(priority))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)
	return s.queryComplaints(ctx, query, args...)
}

// ListEscalationCandidates returns open complaints created at or before
// createdBefore, oldest first. Cooldown filtering is left to the caller.
func (s *Store) ListEscalationCandidates(ctx context.Context, createdBefore time.Time) ([]domain.Complaint, error) {
	return s.queryComplaints(ctx,
		`SELECT `+complaintColumns+` FROM complaints
		 WHERE status IN (?, ?) AND created_at <= ?
		 ORDER BY created_at, id`,
		string(domain.StatusPending), string(domain.StatusInProgress), createdBefore.UTC(),
	)
}

func (s *Store) queryComplaints(ctx context.Context, query string, args ...any) ([]domain.Complaint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query complaints: %w", err)
	}
	defer rows.Close()

	var out []domain.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan complaint: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ApplyEscalation writes a decision onto the complaint it was computed from.
// The update only lands if the stored version still matches d.Version and
// the complaint is still open; otherwise nothing changes.
func (s *Store) ApplyEscalation(ctx context.Context, d domain.EscalationDecision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: apply escalation %s: %w", d.ComplaintID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE complaints SET
			priority = ?, urgency = ?, escalated = 1, escalated_at = ?, escalation_count = ?,
			internal_notes = CASE WHEN internal_notes = '' THEN ? ELSE internal_notes || char(10) || ? END,
			version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND status IN (?, ?)`,
		string(d.NewPriority), string(d.NewUrgency), d.EscalatedAt.UTC(), d.EscalationCount,
		d.Note, d.Note, d.EscalatedAt.UTC(),
		d.ComplaintID, d.Version, string(domain.StatusPending), string(domain.StatusInProgress),
	)
	if err != nil {
		return fmt.Errorf("sqlite: apply escalation %s: %w", d.ComplaintID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: apply escalation %s: %w", d.ComplaintID, err)
	}
	if n == 0 {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints WHERE id = ?`, d.ComplaintID).Scan(&count); err != nil {
			return fmt.Errorf("sqlite: apply escalation %s: %w", d.ComplaintID, err)
		}
		if count == 0 {
			return fmt.Errorf("sqlite: apply escalation %s: %w", d.ComplaintID, ErrNotFound)
		}
		return fmt.Errorf("sqlite: apply escalation %s: %w", d.ComplaintID, ErrConcurrentModification)
	}
	return tx.Commit()
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
