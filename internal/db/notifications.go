package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"facility-notify/internal/models"
)

// BroadcastChannel carries notifications with no specific recipient.
const BroadcastChannel = "notifications_broadcast"

// UserChannel returns the listen/notify channel for one recipient.
func UserChannel(userID string) string {
	return "notifications_user_" + userID
}

// CreateNotification inserts the record and notifies the recipient channel
// (or the broadcast channel when user_id is null) with the record JSON, so
// live subscribers see the insert without polling.
func (d *DB) CreateNotification(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", n.ID, err)
	}

	channel := BroadcastChannel
	if n.UserID != nil {
		channel = UserChannel(*n.UserID)
	}

	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO notifications (
            id, user_id, type, priority, title, body, task_id, data, is_read, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = tx.Exec(ctx, query,
		n.ID, n.UserID, n.Type, n.Priority, n.Title, n.Body, n.TaskID,
		payload2jsonb(n.Data), n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify channel %s: %w", channel, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit notification: %w", err)
	}
	return nil
}

// FetchRecent returns up to limit notifications for the recipient (own plus
// broadcast), newest first.
func (d *DB) FetchRecent(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	rows, err := d.Pool.Query(ctx, `
        SELECT id, user_id, type, priority, title, body, task_id, data, is_read, read_at, created_at
        FROM notifications
        WHERE user_id = $1 OR user_id IS NULL
        ORDER BY created_at DESC
        LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications for user_id %s: %w", userID, err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags one notification read and stamps read_at once. Marking an
// already-read notification is a no-op success.
func (d *DB) MarkRead(ctx context.Context, id string) error {
	_, err := d.Pool.Exec(ctx, `
        UPDATE notifications
        SET is_read = true, read_at = $2
        WHERE id = $1 AND is_read = false`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead flags every unread notification visible to the recipient.
func (d *DB) MarkAllRead(ctx context.Context, userID string) error {
	_, err := d.Pool.Exec(ctx, `
        UPDATE notifications
        SET is_read = true, read_at = $2
        WHERE (user_id = $1 OR user_id IS NULL) AND is_read = false`, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark all read for user_id %s: %w", userID, err)
	}
	return nil
}

// UnreadCount returns the number of unread notifications visible to the
// recipient.
func (d *DB) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := d.Pool.QueryRow(ctx, `
        SELECT count(*) FROM notifications
        WHERE (user_id = $1 OR user_id IS NULL) AND is_read = false`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread for user_id %s: %w", userID, err)
	}
	return count, nil
}

func scanNotification(row pgx.Row) (models.Notification, error) {
	var n models.Notification
	var data []byte
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Priority, &n.Title, &n.Body,
		&n.TaskID, &data, &n.IsRead, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return models.Notification{}, fmt.Errorf("failed to scan notification: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return models.Notification{}, fmt.Errorf("failed to decode notification data: %w", err)
		}
	}
	return n, nil
}

// payload2jsonb keeps NULL in the data column instead of the string "null".
func payload2jsonb(data map[string]interface{}) interface{} {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return raw
}
