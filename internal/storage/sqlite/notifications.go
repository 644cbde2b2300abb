package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"smartgriev/internal/domain"
)

// InsertNotification stores an in-app notification row.
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	n.CreatedAt = n.CreatedAt.UTC()

	payload := ""
	if len(n.Context) > 0 {
		b, err := json.Marshal(n.Context)
		if err != nil {
			return n, fmt.Errorf("sqlite: marshal notification context: %w", err)
		}
		payload = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, complaint_id, recipient, channel, template_id, context, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.ComplaintID, n.Recipient, string(n.Channel), n.TemplateID, payload, n.CreatedAt,
	)
	if err != nil {
		return n, fmt.Errorf("sqlite: insert notification: %w", err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, complaintID string) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, complaint_id, recipient, channel, template_id, context, created_at
		 FROM notifications WHERE complaint_id = ? ORDER BY created_at, id`,
		complaintID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n       domain.Notification
			channel string
			payload string
		)
		if err := rows.Scan(&n.ID, &n.ComplaintID, &n.Recipient, &channel, &n.TemplateID, &payload, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan notification: %w", err)
		}
		n.Channel = domain.NotificationChannel(channel)
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &n.Context); err != nil {
				return nil, fmt.Errorf("sqlite: decode notification context: %w", err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
