package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"smartgriev/internal/domain"
)

// DefaultDepartments is the registry installed by "departments seed".
var DefaultDepartments = []domain.Department{
	{Name: "Public Works", Zone: "Central", ContactEmail: "publicworks@smartgriev.local", Active: true},
	{Name: "Health", Zone: "Central", ContactEmail: "health@smartgriev.local", Active: true},
	{Name: "Education", Zone: "Central", ContactEmail: "education@smartgriev.local", Active: true},
	{Name: "Transport", Zone: "Central", ContactEmail: "transport@smartgriev.local", Active: true},
	{Name: "Water Supply", Zone: "Central", ContactEmail: "water@smartgriev.local", Active: true},
	{Name: "Electricity", Zone: "Central", ContactEmail: "electricity@smartgriev.local", Active: true},
	{Name: "Sanitation", Zone: "Central", ContactEmail: "sanitation@smartgriev.local", Active: true},
}

const departmentColumns = `id, name, zone, contact_email, contact_phone, slack_channel_id, active`

func scanDepartment(row rowScanner) (domain.Department, error) {
	var d domain.Department
	err := row.Scan(&d.ID, &d.Name, &d.Zone, &d.ContactEmail, &d.ContactPhone, &d.SlackChannelID, &d.Active)
	return d, err
}

func (s *Store) InsertDepartment(ctx context.Context, d domain.Department) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO departments (name, zone, contact_email, contact_phone, slack_channel_id, active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.Name, d.Zone, d.ContactEmail, d.ContactPhone, d.SlackChannelID, d.Active,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert department %q: %w", d.Name, err)
	}
	return res.LastInsertId()
}

// SeedDepartments inserts every department whose name is not yet present
// and returns how many were added.
func (s *Store) SeedDepartments(ctx context.Context, depts []domain.Department) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO departments (name, zone, contact_email, contact_phone, slack_channel_id, active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, d := range depts {
		res, err := stmt.ExecContext(ctx, d.Name, d.Zone, d.ContactEmail, d.ContactPhone, d.SlackChannelID, d.Active)
		if err != nil {
			return inserted, fmt.Errorf("sqlite: seed department %q: %w", d.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, tx.Commit()
}

func (s *Store) ListDepartments(ctx context.Context, activeOnly bool) ([]domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list departments: %w", err)
	}
	defer rows.Close()

	var out []domain.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan department: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetDepartment(ctx context.Context, id int64) (domain.Department, error) {
	d, err := scanDepartment(s.db.QueryRowContext(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	if err != nil {
		return d, fmt.Errorf("sqlite: get department %d: %w", id, err)
	}
	return d, nil
}

// FindDepartmentByNameFragment returns the oldest active department whose
// name contains fragment, ignoring case.
func (s *Store) FindDepartmentByNameFragment(ctx context.Context, fragment string) (domain.Department, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return domain.Department{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+departmentColumns+` FROM departments
		 WHERE active = 1 AND LOWER(name) LIKE ? ESCAPE '\'
		 ORDER BY id LIMIT 1`,
		"%"+likeEscape(strings.ToLower(fragment))+"%",
	)
	d, err := scanDepartment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	if err != nil {
		return d, fmt.Errorf("sqlite: find department %q: %w", fragment, err)
	}
	return d, nil
}
