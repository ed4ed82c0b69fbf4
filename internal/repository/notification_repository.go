package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/room-reservation/internal/model"
)

// NotificationRepo provides access to the 'notifications' table.  The
// booking engine only inserts rows here (through the notifier service);
// reads and the read/unread toggle belong to the recipient endpoints.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a new NotificationRepo bound to the given database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts a notification row and populates the generated ID.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	const q = `INSERT INTO notifications (user_id, type, title, message, data) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, n.UserID, n.Type, n.Title, n.Message, n.Data)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListByUser returns a user's notifications, newest first.  When unreadOnly
// is set, read notifications are filtered out.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64, unreadOnly bool) ([]model.Notification, error) {
	q := `SELECT id, user_id, type, title, message, data, is_read, created_at
          FROM notifications WHERE user_id = ?`
	if unreadOnly {
		q += ` AND is_read = FALSE`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		var data sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		if data.Valid {
			d := data.String
			n.Data = &d
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkRead flags a notification as read.  The user id is part of the
// predicate so recipients cannot toggle each other's notifications; a
// mismatch reads as not found.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID uint64) error {
	const q = `UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`
	res, err := r.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero affected rows for a no-op update, so an
		// already-read notification still needs an existence check.
		var exists uint64
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM notifications WHERE id = ? AND user_id = ?`, id, userID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}
