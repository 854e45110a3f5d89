package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

// testEpoch is the base timestamp for fixtures. Millisecond precision, so it
// round-trips through storage unchanged.
var testEpoch = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

var testKey = model.Key{CustomerID: "42", ProgramID: "7"}

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestNotification creates an invitation notification for key.
func createTestNotification(id string, key model.Key, invitationID string, at time.Time) model.Notification {
	return model.Notification{
		ID:         id,
		CustomerID: key.CustomerID,
		BusinessID: "3",
		Kind:       model.NotificationKindInvitation,
		Payload: model.InvitationPayload{
			InvitationID: invitationID,
			BusinessID:   "3",
			ProgramID:    string(key.ProgramID),
		},
		RequiresAction: true,
		CreatedAt:      at,
	}
}

// createTestInvitation creates a PENDING invitation for key that expires a
// week after requestedAt.
func createTestInvitation(id, notificationID string, key model.Key, requestedAt time.Time) model.Invitation {
	return model.Invitation{
		ID:             ident.InvitationID(id),
		CustomerID:     key.CustomerID,
		BusinessID:     "3",
		ProgramID:      key.ProgramID,
		Status:         model.InvitationPending,
		RequestedAt:    requestedAt,
		ExpiresAt:      requestedAt.Add(7 * 24 * time.Hour),
		NotificationID: notificationID,
	}
}

// insertPending writes a notification and a PENDING invitation for key.
func insertPending(t *testing.T, s *Store, id string, key model.Key, requestedAt time.Time) model.Invitation {
	t.Helper()
	ctx := t.Context()

	notificationID := "n-" + id
	if err := s.InsertNotification(ctx, createTestNotification(notificationID, key, id, requestedAt)); err != nil {
		t.Fatalf("InsertNotification() failed: %v", err)
	}
	inv := createTestInvitation(id, notificationID, key, requestedAt)
	inserted, err := s.InsertInvitation(ctx, inv)
	if err != nil {
		t.Fatalf("InsertInvitation() failed: %v", err)
	}
	if !inserted {
		t.Fatalf("InsertInvitation(%s) was not inserted", id)
	}
	return inv
}

func createTestEnrollment(key model.Key, points int64) model.Enrollment {
	return model.Enrollment{
		CustomerID:     key.CustomerID,
		ProgramID:      key.ProgramID,
		BusinessID:     "3",
		Status:         model.EnrollmentActive,
		CurrentPoints:  points,
		EnrolledAt:     testEpoch,
		LastActivityAt: testEpoch,
	}
}

func createTestCard(id string, key model.Key, points int64) model.RewardCard {
	return model.RewardCard{
		ID:            id,
		CustomerID:    key.CustomerID,
		ProgramID:     key.ProgramID,
		BusinessID:    "3",
		CardNumber:    "GC-" + id,
		PointsBalance: points,
		Tier:          model.DefaultTier,
		Status:        model.CardActive,
		CreatedAt:     testEpoch,
		UpdatedAt:     testEpoch,
	}
}

// totalChanges returns SQLite's count of rows written on the connection.
func totalChanges(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	var n int64
	if err := db.QueryRow("SELECT total_changes()").Scan(&n); err != nil {
		t.Fatalf("total_changes() failed: %v", err)
	}
	return n
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("scan table_info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
