package testutil

import (
	"context"
	"sync"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

// RecordingNotifier captures every notification handed to it.
// Implements notify.Notifier.
//
// Thread-safety: safe for concurrent use via internal mutex.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

// Notify records n.
func (r *RecordingNotifier) Notify(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of the recorded notifications in hand-off order.
func (r *RecordingNotifier) Sent() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.sent...)
}
