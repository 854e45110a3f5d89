package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

const notificationColumns = `id, customer_id, business_id, kind, payload, requires_action, action_taken, is_read, created_at`

// InsertNotification inserts a notification record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (q queries) InsertNotification(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("insert notification: marshal payload: %w", err)
	}

	_, err = q.exec(ctx, `
		INSERT INTO notifications
		(`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		n.ID,
		string(n.CustomerID),
		string(n.BusinessID),
		n.Kind,
		string(payload),
		n.RequiresAction,
		n.ActionTaken,
		n.IsRead,
		toMillis(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetNotification retrieves a single notification by ID.
// Returns sql.ErrNoRows if not found.
func (q queries) GetNotification(ctx context.Context, id string) (model.Notification, error) {
	row := q.queryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE id = ?
	`, id)

	return scanNotification(row)
}

// ResolveNotification marks a notification as acted upon and read.
// Conditional on the row not already being in that state, so a repeated call
// performs no write. Returns changed=false when nothing was updated.
func (q queries) ResolveNotification(ctx context.Context, id string) (changed bool, err error) {
	changed, err = q.execAffected(ctx, `
		UPDATE notifications
		SET action_taken = TRUE, is_read = TRUE
		WHERE id = ? AND (action_taken = FALSE OR is_read = FALSE)
	`, id)
	if err != nil {
		return false, fmt.Errorf("resolve notification: %w", err)
	}
	return changed, nil
}

// CloseNotificationAction removes the pending action from a notification
// without marking it read. Used when the invitation expires unanswered.
func (q queries) CloseNotificationAction(ctx context.Context, id string) (changed bool, err error) {
	changed, err = q.execAffected(ctx, `
		UPDATE notifications
		SET action_taken = TRUE
		WHERE id = ? AND action_taken = FALSE
	`, id)
	if err != nil {
		return false, fmt.Errorf("close notification action: %w", err)
	}
	return changed, nil
}

// ListNotifications returns a customer's notifications, newest first.
func (q queries) ListNotifications(ctx context.Context, customerID ident.CustomerID, unreadOnly bool) ([]model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE customer_id = ?`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.query(ctx, query, string(customerID))
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}

func scanNotification(row rowScanner) (model.Notification, error) {
	var (
		n                  model.Notification
		customer, business string
		payload            string
		createdAt          int64
	)
	if err := row.Scan(&n.ID, &customer, &business, &n.Kind, &payload,
		&n.RequiresAction, &n.ActionTaken, &n.IsRead, &createdAt); err != nil {
		return model.Notification{}, err
	}

	if err := json.Unmarshal([]byte(payload), &n.Payload); err != nil {
		return model.Notification{}, fmt.Errorf("unmarshal notification payload: %w", err)
	}
	n.CustomerID = ident.CustomerID(customer)
	n.BusinessID = ident.BusinessID(business)
	n.CreatedAt = fromMillis(createdAt)
	return n, nil
}
