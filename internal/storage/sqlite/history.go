package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"smartgriev/internal/domain"
)

func (s *Store) InsertClassificationRecord(ctx context.Context, r domain.ClassificationRecord) error {
	if r.ClassifiedAt.IsZero() {
		r.ClassifiedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO classification_history (complaint_id, department, confidence, method, llm_provider, reasoning, classified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ComplaintID, string(r.Department), r.Confidence, string(r.Method), r.Provider, r.Reasoning, r.ClassifiedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert classification: %w", err)
	}
	return nil
}

func (s *Store) LatestClassification(ctx context.Context, complaintID string) (domain.ClassificationRecord, error) {
	var (
		r      domain.ClassificationRecord
		dept   string
		method string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, complaint_id, department, confidence, method, llm_provider, reasoning, classified_at
		 FROM classification_history WHERE complaint_id = ? ORDER BY classified_at DESC, id DESC LIMIT 1`,
		complaintID,
	).Scan(&r.ID, &r.ComplaintID, &dept, &r.Confidence, &method, &r.Provider, &r.Reasoning, &r.ClassifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("sqlite: latest classification %s: %w", complaintID, err)
	}
	r.Department = domain.DepartmentCode(dept)
	r.Method = domain.ClassificationMethod(method)
	return r, nil
}

// ClassificationStats counts history rows per method.
func (s *Store) ClassificationStats(ctx context.Context) (map[domain.ClassificationMethod]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT method, COUNT(*) FROM classification_history GROUP BY method`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: classification stats: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ClassificationMethod]int)
	for rows.Next() {
		var (
			method string
			n      int
		)
		if err := rows.Scan(&method, &n); err != nil {
			return nil, err
		}
		out[domain.ClassificationMethod(method)] = n
	}
	return out, rows.Err()
}
