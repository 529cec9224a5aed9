package pgorder

import (
	"context"
	"time"

	"github.com/BearBump/StreetEats/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// InsertNotification идемпотентна по (recipient, type, dedup_key):
// при конфликте возвращается уже существующая запись.
func (s *Storage) InsertNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	now := time.Now().UTC()

	var id uint64
	var createdAt time.Time
	err := s.db.QueryRow(ctx, `
INSERT INTO notifications (recipient_id, type, title, message, data, dedup_key, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (recipient_id, type, dedup_key) WHERE dedup_key <> '' DO NOTHING
RETURNING id, created_at
`, n.RecipientID, string(n.Type), n.Title, n.Message, n.DataJSON, n.DedupKey, now).Scan(&id, &createdAt)
	if err == pgx.ErrNoRows {
		// Конфликт по dedup-ключу: событие уже доставлено.
		err = s.db.QueryRow(ctx, `
SELECT id, created_at FROM notifications
WHERE recipient_id = $1 AND type = $2 AND dedup_key = $3
`, n.RecipientID, string(n.Type), n.DedupKey).Scan(&id, &createdAt)
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert notification")
	}

	out := *n
	out.ID = id
	out.CreatedAt = createdAt
	return &out, nil
}

func (s *Storage) ListNotifications(ctx context.Context, recipientID string, limit, offset int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, recipient_id, type, title, message, data, dedup_key, is_read, created_at, read_at
FROM notifications
WHERE recipient_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, recipientID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select notifications")
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		var typ string
		var readAt *time.Time
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &n.Title, &n.Message, &n.DataJSON, &n.DedupKey, &n.IsRead, &n.CreatedAt, &readAt); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		n.Type = models.NotificationType(typ)
		n.ReadAt = readAt
		out = append(out, &n)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read
`, recipientID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count unread")
	}
	return n, nil
}

// MarkNotificationRead идемпотентна: повторный вызов не двигает read_at.
func (s *Storage) MarkNotificationRead(ctx context.Context, id uint64) error {
	tag, err := s.db.Exec(ctx, `
UPDATE notifications
SET is_read = TRUE, read_at = COALESCE(read_at, now())
WHERE id = $1
`, id)
	if err != nil {
		return errors.Wrap(err, "mark read")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotificationNotFound, "notification %d", id)
	}
	return nil
}

func (s *Storage) MarkAllNotificationsRead(ctx context.Context, recipientID string) error {
	_, err := s.db.Exec(ctx, `
UPDATE notifications
SET is_read = TRUE, read_at = COALESCE(read_at, now())
WHERE recipient_id = $1 AND NOT is_read
`, recipientID)
	return errors.Wrap(err, "mark all read")
}

func (s *Storage) DeleteNotification(ctx context.Context, id uint64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	return errors.Wrap(err, "delete notification")
}

func (s *Storage) ClearNotifications(ctx context.Context, recipientID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE recipient_id = $1`, recipientID)
	return errors.Wrap(err, "clear notifications")
}
