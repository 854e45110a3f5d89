package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/provision"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/testutil"
)

var (
	keyA = model.Key{CustomerID: "1", ProgramID: "10"}
	keyB = model.Key{CustomerID: "2", ProgramID: "10"}
	keyC = model.Key{CustomerID: "3", ProgramID: "11"}
)

func newProvisioner() *provision.Provisioner {
	return provision.New(ident.UUIDv7Generator{}, testutil.NewSequentialNumberer(),
		provision.WithLogger(slog.New(slog.DiscardHandler)))
}

func newSweep(s *store.Store, clock *testutil.Clock, applier Applier) *Sweep {
	return New(s, applier, WithClock(clock), WithLogger(slog.New(slog.DiscardHandler)))
}

func seedEnrollment(t *testing.T, s *store.Store, key model.Key, status model.EnrollmentStatus, points int64) {
	t.Helper()
	testutil.SeedEnrollment(t, s, model.Enrollment{
		CustomerID:     key.CustomerID,
		ProgramID:      key.ProgramID,
		BusinessID:     "5",
		Status:         status,
		CurrentPoints:  points,
		EnrolledAt:     testutil.Epoch,
		LastActivityAt: testutil.Epoch,
	})
}

func seedCard(t *testing.T, s *store.Store, key model.Key, id string, status model.CardStatus, balance int64) {
	t.Helper()
	testutil.SeedCard(t, s, model.RewardCard{
		ID:            id,
		CustomerID:    key.CustomerID,
		ProgramID:     key.ProgramID,
		BusinessID:    "5",
		CardNumber:    "GC-" + id,
		PointsBalance: balance,
		Tier:          model.DefaultTier,
		Status:        status,
		CreatedAt:     testutil.Epoch,
		UpdatedAt:     testutil.Epoch,
	})
}

func TestRun_RepairsDrift(t *testing.T) {
	s := testutil.OpenStore(t)
	clock := testutil.NewClock()
	ctx := context.Background()

	// Missing card.
	seedEnrollment(t, s, keyA, model.EnrollmentActive, 30)
	// Card shows a stale balance.
	seedEnrollment(t, s, keyB, model.EnrollmentActive, 80)
	seedCard(t, s, keyB, "card-b", model.CardActive, 50)
	// Card survived an enrollment cancellation.
	seedEnrollment(t, s, keyC, model.EnrollmentCancelled, 10)
	seedCard(t, s, keyC, "card-c", model.CardActive, 10)

	report, err := newSweep(s, clock, newProvisioner()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.CardsRepaired)
	assert.Equal(t, 1, report.CardsDeactivated)
	assert.Equal(t, 3, report.Repaired)
	assert.Empty(t, report.Failures)

	cardA, err := s.GetCard(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, model.CardActive, cardA.Status)
	assert.Equal(t, int64(30), cardA.PointsBalance)

	cardB, err := s.GetCard(ctx, keyB)
	require.NoError(t, err)
	assert.Equal(t, "card-b", cardB.ID)
	assert.Equal(t, int64(80), cardB.PointsBalance)

	cardC, err := s.GetCard(ctx, keyC)
	require.NoError(t, err)
	assert.Equal(t, model.CardInactive, cardC.Status)

	enrollmentC, err := s.GetEnrollment(ctx, keyC)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCancelled, enrollmentC.Status, "orphan repair never re-enrolls")
}

func TestRun_SecondRunWritesNothing(t *testing.T) {
	s := testutil.OpenStore(t)
	clock := testutil.NewClock()
	ctx := context.Background()

	seedEnrollment(t, s, keyA, model.EnrollmentActive, 30)
	seedEnrollment(t, s, keyB, model.EnrollmentActive, 80)
	seedCard(t, s, keyB, "card-b", model.CardInactive, 0)
	inv := testutil.SeedInvitation(t, s, keyC, "5", clock.Now(), time.Hour)
	_, err := s.TransitionInvitation(ctx, inv.ID, model.InvitationPending, model.InvitationDeclined, clock.Now())
	require.NoError(t, err)

	sweep := newSweep(s, clock, newProvisioner())
	first, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Repaired)

	before := testutil.TotalChanges(t, s)
	second, err := sweep.Run(ctx)
	require.NoError(t, err)

	assert.Zero(t, second.Scanned)
	assert.Zero(t, second.Repaired)
	assert.Equal(t, before, testutil.TotalChanges(t, s))
}

func TestRun_ClosesStaleNotificationActions(t *testing.T) {
	s := testutil.OpenStore(t)
	clock := testutil.NewClock()
	ctx := context.Background()

	declined := testutil.SeedInvitation(t, s, keyA, "5", clock.Now(), time.Hour)
	_, err := s.TransitionInvitation(ctx, declined.ID, model.InvitationPending, model.InvitationDeclined, clock.Now())
	require.NoError(t, err)

	expired := testutil.SeedInvitation(t, s, keyB, "5", clock.Now(), time.Hour)
	_, err = s.TransitionInvitation(ctx, expired.ID, model.InvitationPending, model.InvitationExpired, clock.Now())
	require.NoError(t, err)

	pending := testutil.SeedInvitation(t, s, keyC, "5", clock.Now(), time.Hour)

	report, err := newSweep(s, clock, newProvisioner()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.NotificationsRepaired)

	n, err := s.GetNotification(ctx, declined.NotificationID)
	require.NoError(t, err)
	assert.True(t, n.ActionTaken)
	assert.True(t, n.IsRead)

	n, err = s.GetNotification(ctx, expired.NotificationID)
	require.NoError(t, err)
	assert.True(t, n.ActionTaken)
	assert.False(t, n.IsRead)

	n, err = s.GetNotification(ctx, pending.NotificationID)
	require.NoError(t, err)
	assert.False(t, n.ActionTaken, "pending invitations keep their action")
}

func TestRun_MarksAnsweredNotificationsRead(t *testing.T) {
	s := testutil.OpenStore(t)
	clock := testutil.NewClock()
	ctx := context.Background()

	declined := testutil.SeedInvitation(t, s, keyA, "5", clock.Now(), time.Hour)
	_, err := s.TransitionInvitation(ctx, declined.ID, model.InvitationPending, model.InvitationDeclined, clock.Now())
	require.NoError(t, err)
	_, err = s.CloseNotificationAction(ctx, declined.NotificationID)
	require.NoError(t, err)

	sweep := newSweep(s, clock, newProvisioner())
	report, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NotificationsRepaired)

	n, err := s.GetNotification(ctx, declined.NotificationID)
	require.NoError(t, err)
	assert.True(t, n.ActionTaken)
	assert.True(t, n.IsRead)

	again, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Scanned)
}

// failingApplier fails for one key and delegates the rest.
type failingApplier struct {
	next Applier
	key  model.Key
}

func (f failingApplier) Repair(ctx context.Context, tx provision.Tx, key model.Key, businessID ident.BusinessID, now time.Time) (provision.Outcome, error) {
	if key == f.key {
		return provision.Outcome{}, errors.New("card service unavailable")
	}
	return f.next.Repair(ctx, tx, key, businessID, now)
}

// leavingApplier cancels the enrollment inside the repair transaction before
// delegating, as a Leave landing between the scan and the repair would.
type leavingApplier struct {
	next Applier
}

func (l leavingApplier) Repair(ctx context.Context, tx provision.Tx, key model.Key, businessID ident.BusinessID, now time.Time) (provision.Outcome, error) {
	if _, err := tx.(*store.Tx).SetEnrollmentStatus(ctx, key, model.EnrollmentCancelled, now); err != nil {
		return provision.Outcome{}, err
	}
	return l.next.Repair(ctx, tx, key, businessID, now)
}

func TestRun_SkipsEnrollmentCancelledAfterScan(t *testing.T) {
	s := testutil.OpenStore(t)
	clock := testutil.NewClock()
	ctx := context.Background()

	seedEnrollment(t, s, keyA, model.EnrollmentActive, 40)

	report, err := newSweep(s, clock, leavingApplier{next: newProvisioner()}).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Scanned)
	assert.Zero(t, report.CardsRepaired)
	assert.Zero(t, report.Repaired)
	assert.Empty(t, report.Failures)

	enrollment, err := s.GetEnrollment(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCancelled, enrollment.Status, "repair never re-enrolls")
	assert.Equal(t, int64(40), enrollment.CurrentPoints)

	_, err = s.GetCard(ctx, keyA)
	require.Error(t, err, "no card is provisioned for a cancelled enrollment")
}

func TestRun_FailureIsolatedToRecord(t *testing.T) {
	s := testutil.OpenStore(t)
	clock := testutil.NewClock()
	ctx := context.Background()

	seedEnrollment(t, s, keyA, model.EnrollmentActive, 5)
	seedEnrollment(t, s, keyB, model.EnrollmentActive, 6)
	seedEnrollment(t, s, keyC, model.EnrollmentActive, 7)

	applier := failingApplier{next: newProvisioner(), key: keyB}
	report, err := newSweep(s, clock, applier).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.CardsRepaired)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, KindCard, report.Failures[0].Kind)
	assert.Equal(t, keyB.String(), report.Failures[0].Ref)
	assert.Contains(t, report.Failures[0].Err, "card service unavailable")

	_, err = s.GetCard(ctx, keyB)
	require.Error(t, err, "failed repair is rolled back")
	_, err = s.GetCard(ctx, keyC)
	require.NoError(t, err, "records after the failure are still repaired")
}

func TestRun_EmptyStore(t *testing.T) {
	s := testutil.OpenStore(t)
	report, err := newSweep(s, testutil.NewClock(), newProvisioner()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Failures: []Failure{}}, report)
}
