// Package notify defines the hand-off to the notification delivery transport.
//
// The engine and the invitation manager write Notification rows; after the
// writing transaction commits they pass the row to a Notifier for push-style
// delivery. Delivery is best-effort: the committed row is the source of
// truth, and a failed hand-off is logged, never rolled back.
package notify

import (
	"context"
	"log/slog"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

// Notifier receives committed notifications.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, n model.Notification) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, n model.Notification) error {
	return f(ctx, n)
}

// LogNotifier records hand-offs in the log instead of delivering them.
// It is the default when no transport is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(ctx context.Context, n model.Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification ready for delivery",
		"notification_id", n.ID,
		"customer_id", n.CustomerID,
		"kind", n.Kind,
		"requires_action", n.RequiresAction,
		"action_taken", n.ActionTaken,
	)
	return nil
}

// Deliver hands n to notifier and logs, rather than returns, any failure.
func Deliver(ctx context.Context, notifier Notifier, logger *slog.Logger, n model.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil {
		logger.WarnContext(ctx, "notification hand-off failed",
			"notification_id", n.ID,
			"error", err,
		)
	}
}
