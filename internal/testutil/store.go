package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
)

// OpenStore creates a fresh SQLite store in a temp directory.
// The store is closed when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// OpenStoreAt opens the SQLite store at path, creating it if needed.
// Unlike OpenStore the caller closes it, so a test can hand the file to
// another process-level component afterwards.
func OpenStoreAt(t testing.TB, path string) *store.Store {
	t.Helper()
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open(%s) failed: %v", path, err)
	}
	return s
}

// SeedInvitation writes a PENDING invitation and its notification, as the
// invitation manager would, and returns the stored invitation.
// The invitation expires ttl after requestedAt.
func SeedInvitation(t testing.TB, s *store.Store, key model.Key, business ident.BusinessID, requestedAt time.Time, ttl time.Duration) model.Invitation {
	t.Helper()
	ctx := context.Background()

	inv := model.Invitation{
		ID:             ident.InvitationID(uuid.NewString()),
		CustomerID:     key.CustomerID,
		BusinessID:     business,
		ProgramID:      key.ProgramID,
		Status:         model.InvitationPending,
		RequestedAt:    requestedAt,
		ExpiresAt:      requestedAt.Add(ttl),
		NotificationID: uuid.NewString(),
	}
	n := model.Notification{
		ID:         inv.NotificationID,
		CustomerID: key.CustomerID,
		BusinessID: business,
		Kind:       model.NotificationKindInvitation,
		Payload: model.InvitationPayload{
			InvitationID: string(inv.ID),
			BusinessID:   string(business),
			ProgramID:    string(key.ProgramID),
		},
		RequiresAction: true,
		CreatedAt:      requestedAt,
	}

	if err := s.InsertNotification(ctx, n); err != nil {
		t.Fatalf("SeedInvitation: %v", err)
	}
	inserted, err := s.InsertInvitation(ctx, inv)
	if err != nil {
		t.Fatalf("SeedInvitation: %v", err)
	}
	if !inserted {
		t.Fatalf("SeedInvitation: %s already has a pending invitation", key)
	}
	return inv
}

// SeedEnrollment writes an enrollment row directly, bypassing provisioning.
// Used to set up reactivation and drift scenarios.
func SeedEnrollment(t testing.TB, s *store.Store, e model.Enrollment) {
	t.Helper()
	_, err := s.DB().ExecContext(context.Background(), `
		INSERT INTO enrollments
		(customer_id, program_id, business_id, status, current_points, enrolled_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(e.CustomerID), string(e.ProgramID), string(e.BusinessID), string(e.Status),
		e.CurrentPoints, e.EnrolledAt.UnixMilli(), e.LastActivityAt.UnixMilli(),
	)
	if err != nil {
		t.Fatalf("SeedEnrollment failed: %v", err)
	}
}

// SeedCard writes a reward card row directly, bypassing provisioning.
func SeedCard(t testing.TB, s *store.Store, c model.RewardCard) {
	t.Helper()
	_, err := s.DB().ExecContext(context.Background(), `
		INSERT INTO reward_cards
		(id, customer_id, program_id, business_id, card_number, points_balance, tier, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, string(c.CustomerID), string(c.ProgramID), string(c.BusinessID), c.CardNumber,
		c.PointsBalance, c.Tier, string(c.Status), c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		t.Fatalf("SeedCard failed: %v", err)
	}
}

// Exec runs a raw statement against the store, failing the test on error.
// Used to simulate drift that the application itself never produces.
func Exec(t testing.TB, s *store.Store, query string, args ...any) {
	t.Helper()
	if _, err := s.DB().ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("Exec(%q) failed: %v", query, err)
	}
}

// CountRows returns the number of rows in table for a customer and program.
func CountRows(t testing.TB, s *store.Store, table string, key model.Key) int {
	t.Helper()
	var n int
	err := s.DB().QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM "+table+" WHERE customer_id = ? AND program_id = ?",
		string(key.CustomerID), string(key.ProgramID),
	).Scan(&n)
	if err != nil {
		t.Fatalf("CountRows(%s) failed: %v", table, err)
	}
	return n
}

// TotalChanges returns SQLite's running count of rows written on the store's
// single connection. Comparing two readings shows whether anything was written
// in between.
func TotalChanges(t testing.TB, s *store.Store) int64 {
	t.Helper()
	var n int64
	if err := s.DB().QueryRowContext(context.Background(), "SELECT total_changes()").Scan(&n); err != nil {
		t.Fatalf("TotalChanges failed: %v", err)
	}
	return n
}
