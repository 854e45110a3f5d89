package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/sync/errgroup"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/errs"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/notify"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/provision"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/testutil"
)

const week = 7 * 24 * time.Hour

var (
	testKey      = model.Key{CustomerID: "42", ProgramID: "7"}
	testBusiness = ident.BusinessID("3")
)

type fixture struct {
	engine   *Engine
	store    *store.Store
	clock    *testutil.Clock
	notifier *testutil.RecordingNotifier
}

func newFixture(t *testing.T, opts ...EngineOption) fixture {
	t.Helper()
	s := testutil.OpenStore(t)
	clock := testutil.NewClock()
	notifier := &testutil.RecordingNotifier{}
	p := provision.New(ident.UUIDv7Generator{}, testutil.NewSequentialNumberer(), provision.WithLogger(discardLogger()))

	base := []EngineOption{WithClock(clock), WithNotifier(notifier), WithLogger(discardLogger())}
	return fixture{
		engine:   New(s, p, append(base, opts...)...),
		store:    s,
		clock:    clock,
		notifier: notifier,
	}
}

func (f fixture) invite(t *testing.T, key model.Key) model.Invitation {
	t.Helper()
	return testutil.SeedInvitation(t, f.store, key, testBusiness, f.clock.Now(), week)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRespond_ApproveFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, testKey)
	f.clock.Advance(time.Hour)

	result, err := f.engine.Respond(ctx, inv.ID, model.DecisionApprove)
	require.NoError(t, err)

	assert.Equal(t, inv.ID, result.InvitationID)
	assert.Equal(t, model.InvitationApproved, result.Status)
	assert.False(t, result.Replayed)
	assert.NotEmpty(t, result.CardID)
	assert.Equal(t, "TEST-0001", result.CardNumber)
	require.NotNil(t, result.PointsBalance)
	assert.Equal(t, int64(0), *result.PointsBalance)

	stored, err := f.store.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationApproved, stored.Status)
	require.NotNil(t, stored.RespondedAt)
	assert.Equal(t, f.clock.Now(), *stored.RespondedAt)

	enrollment, err := f.engine.EnrollmentStatus(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, enrollment.Status)
	assert.Equal(t, int64(0), enrollment.CurrentPoints)
	assert.Equal(t, testBusiness, enrollment.BusinessID)

	card, err := f.engine.Card(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, result.CardID, card.ID)
	assert.Equal(t, model.CardActive, card.Status)
	assert.Equal(t, model.DefaultTier, card.Tier)

	n, err := f.store.GetNotification(ctx, inv.NotificationID)
	require.NoError(t, err)
	assert.True(t, n.ActionTaken)
	assert.True(t, n.IsRead)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, inv.NotificationID, sent[0].ID)
	assert.True(t, sent[0].ActionTaken)
}

func TestRespond_ReplayReturnsSameResultWithoutWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, testKey)

	first, err := f.engine.Respond(ctx, inv.ID, model.DecisionApprove)
	require.NoError(t, err)

	before := testutil.TotalChanges(t, f.store)
	f.clock.Advance(time.Minute)

	// A later decline is a replay too: the first answer stands.
	for _, d := range []model.Decision{model.DecisionApprove, model.DecisionDecline} {
		again, err := f.engine.Respond(ctx, inv.ID, d)
		require.NoError(t, err)
		assert.True(t, again.Replayed)
		assert.Equal(t, model.InvitationApproved, again.Status)
		assert.Equal(t, first.CardID, again.CardID)
		assert.Equal(t, *first.PointsBalance, *again.PointsBalance)
	}

	assert.Equal(t, before, testutil.TotalChanges(t, f.store), "replays must not write")
	assert.Equal(t, 1, testutil.CountRows(t, f.store, "enrollments", testKey))
	assert.Equal(t, 1, testutil.CountRows(t, f.store, "reward_cards", testKey))
	assert.Len(t, f.notifier.Sent(), 1, "only the fresh transition is handed off")
}

func TestRespond_ConcurrentApprovalsProvisionOnce(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, testKey)

	const callers = 20
	results := make([]model.Result, callers)

	var g errgroup.Group
	for i := range callers {
		g.Go(func() error {
			r, err := f.engine.Respond(context.Background(), inv.ID, model.DecisionApprove)
			results[i] = r
			return err
		})
	}
	require.NoError(t, g.Wait())

	fresh := 0
	for _, r := range results {
		assert.Equal(t, model.InvitationApproved, r.Status)
		assert.Equal(t, results[0].CardID, r.CardID)
		if !r.Replayed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh, "exactly one caller performs the transition")
	assert.Equal(t, 1, testutil.CountRows(t, f.store, "enrollments", testKey))
	assert.Equal(t, 1, testutil.CountRows(t, f.store, "reward_cards", testKey))
}

func TestRespond_ConcurrentMixedDecisionsAgree(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, testKey)

	const callers = 10
	results := make([]model.Result, callers)

	var g errgroup.Group
	for i := range callers {
		d := model.DecisionApprove
		if i%2 == 1 {
			d = model.DecisionDecline
		}
		g.Go(func() error {
			r, err := f.engine.Respond(context.Background(), inv.ID, d)
			results[i] = r
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, r := range results {
		assert.Equal(t, results[0].Status, r.Status, "all callers observe the winning decision")
	}

	stored, err := f.store.GetInvitation(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, results[0].Status, stored.Status)

	wantRows := 0
	if stored.Status == model.InvitationApproved {
		wantRows = 1
	}
	assert.Equal(t, wantRows, testutil.CountRows(t, f.store, "reward_cards", testKey))
}

func TestRespond_DeclineWritesNoEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, testKey)

	result, err := f.engine.Respond(ctx, inv.ID, model.DecisionDecline)
	require.NoError(t, err)

	assert.Equal(t, model.InvitationDeclined, result.Status)
	assert.Empty(t, result.CardID)
	assert.Nil(t, result.PointsBalance)
	assert.False(t, result.Replayed)

	assert.Zero(t, testutil.CountRows(t, f.store, "enrollments", testKey))
	assert.Zero(t, testutil.CountRows(t, f.store, "reward_cards", testKey))

	n, err := f.store.GetNotification(ctx, inv.NotificationID)
	require.NoError(t, err)
	assert.True(t, n.ActionTaken)
	assert.True(t, n.IsRead)

	again, err := f.engine.Respond(ctx, inv.ID, model.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationDeclined, again.Status)
	assert.True(t, again.Replayed)
	assert.Zero(t, testutil.CountRows(t, f.store, "enrollments", testKey))
}

func TestRespond_DeclineLeavesExistingRowsUntouched(t *testing.T) {
	tests := []struct {
		name             string
		enrollmentStatus model.EnrollmentStatus
		cardStatus       model.CardStatus // empty: no card row
	}{
		{"inactive enrollment and card", model.EnrollmentInactive, model.CardInactive},
		{"cancelled enrollment without card", model.EnrollmentCancelled, ""},
		{"active enrollment and card", model.EnrollmentActive, model.CardActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			earlier := f.clock.Now().Add(-30 * 24 * time.Hour)

			testutil.SeedEnrollment(t, f.store, model.Enrollment{
				CustomerID:     testKey.CustomerID,
				ProgramID:      testKey.ProgramID,
				BusinessID:     testBusiness,
				Status:         tt.enrollmentStatus,
				CurrentPoints:  75,
				EnrolledAt:     earlier,
				LastActivityAt: earlier,
			})
			if tt.cardStatus != "" {
				testutil.SeedCard(t, f.store, model.RewardCard{
					ID:            "card-1",
					CustomerID:    testKey.CustomerID,
					ProgramID:     testKey.ProgramID,
					BusinessID:    testBusiness,
					CardNumber:    "RC-1",
					PointsBalance: 60,
					Tier:          model.DefaultTier,
					Status:        tt.cardStatus,
					CreatedAt:     earlier,
					UpdatedAt:     earlier,
				})
			}
			inv := f.invite(t, testKey)

			enrollmentBefore, err := f.store.GetEnrollment(ctx, testKey)
			require.NoError(t, err)
			cardBefore, cardErrBefore := f.store.GetCard(ctx, testKey)
			changesBefore := testutil.TotalChanges(t, f.store)

			f.clock.Advance(time.Hour)
			result, err := f.engine.Respond(ctx, inv.ID, model.DecisionDecline)
			require.NoError(t, err)
			assert.Equal(t, model.InvitationDeclined, result.Status)

			// The invitation status and its notification are the only writes.
			assert.Equal(t, changesBefore+2, testutil.TotalChanges(t, f.store))

			enrollmentAfter, err := f.store.GetEnrollment(ctx, testKey)
			require.NoError(t, err)
			assert.Equal(t, enrollmentBefore, enrollmentAfter)

			cardAfter, cardErrAfter := f.store.GetCard(ctx, testKey)
			assert.Equal(t, cardBefore, cardAfter)
			assert.Equal(t, cardErrBefore, cardErrAfter)
			if tt.cardStatus == "" {
				assert.Zero(t, testutil.CountRows(t, f.store, "reward_cards", testKey))
			}
		})
	}
}

func TestRespond_ReactivatesWithPreservedPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	earlier := f.clock.Now().Add(-90 * 24 * time.Hour)

	testutil.SeedEnrollment(t, f.store, model.Enrollment{
		CustomerID:     testKey.CustomerID,
		ProgramID:      testKey.ProgramID,
		BusinessID:     testBusiness,
		Status:         model.EnrollmentInactive,
		CurrentPoints:  150,
		EnrolledAt:     earlier,
		LastActivityAt: earlier,
	})
	testutil.SeedCard(t, f.store, model.RewardCard{
		ID:            "card-old",
		CustomerID:    testKey.CustomerID,
		ProgramID:     testKey.ProgramID,
		BusinessID:    testBusiness,
		CardNumber:    "GC-0099",
		PointsBalance: 150,
		Tier:          "GOLD",
		Status:        model.CardInactive,
		CreatedAt:     earlier,
		UpdatedAt:     earlier,
	})

	inv := f.invite(t, testKey)
	result, err := f.engine.Respond(ctx, inv.ID, model.DecisionApprove)
	require.NoError(t, err)

	assert.Equal(t, "card-old", result.CardID)
	assert.Equal(t, "GC-0099", result.CardNumber)
	require.NotNil(t, result.PointsBalance)
	assert.Equal(t, int64(150), *result.PointsBalance)

	enrollment, err := f.engine.EnrollmentStatus(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, enrollment.Status)
	assert.Equal(t, int64(150), enrollment.CurrentPoints)
	assert.Equal(t, earlier, enrollment.EnrolledAt)

	card, err := f.engine.Card(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, model.CardActive, card.Status)
	assert.Equal(t, "GOLD", card.Tier)
	assert.Equal(t, 1, testutil.CountRows(t, f.store, "reward_cards", testKey))
}

func TestRespond_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, testKey)
	f.clock.Advance(week)

	_, err := f.engine.Respond(ctx, inv.ID, model.DecisionApprove)
	require.ErrorIs(t, err, errs.ErrInvitationExpired)

	stored, err := f.store.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationExpired, stored.Status)
	assert.Nil(t, stored.RespondedAt)

	n, err := f.store.GetNotification(ctx, inv.NotificationID)
	require.NoError(t, err)
	assert.True(t, n.ActionTaken)
	assert.False(t, n.IsRead)

	assert.Zero(t, testutil.CountRows(t, f.store, "enrollments", testKey))

	_, err = f.engine.Respond(ctx, inv.ID, model.DecisionDecline)
	require.ErrorIs(t, err, errs.ErrInvitationExpired)
}

func TestRespond_JustBeforeDeadlineSucceeds(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, testKey)
	f.clock.Advance(week - time.Millisecond)

	result, err := f.engine.Respond(context.Background(), inv.ID, model.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationApproved, result.Status)
}

func TestRespond_Rejections(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, testKey)

	tests := []struct {
		name     string
		id       ident.InvitationID
		decision model.Decision
		want     error
	}{
		{"unknown invitation", "0190b3c4-0000-7000-8000-000000000000", model.DecisionApprove, errs.ErrInvitationNotFound},
		{"unknown decision", inv.ID, model.Decision("MAYBE"), errs.ErrInvalidDecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Respond(context.Background(), tt.id, tt.decision)
			require.ErrorIs(t, err, tt.want)
		})
	}

	stored, err := f.store.GetInvitation(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationPending, stored.Status)
}

func TestRespond_ApprovedWithoutCardReportsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, testKey)

	_, err := f.engine.Respond(ctx, inv.ID, model.DecisionApprove)
	require.NoError(t, err)

	testutil.Exec(t, f.store, "DELETE FROM reward_cards WHERE customer_id = ?", string(testKey.CustomerID))

	_, err = f.engine.Respond(ctx, inv.ID, model.DecisionApprove)
	require.ErrorIs(t, err, errs.ErrEnrollmentDrift)
	assert.Zero(t, testutil.CountRows(t, f.store, "reward_cards", testKey), "replay must not re-provision")
}

func TestRespond_NotifierFailureDoesNotFailResponse(t *testing.T) {
	failing := notify.Func(func(context.Context, model.Notification) error {
		return errors.New("push gateway down")
	})
	f := newFixture(t, WithNotifier(failing))
	inv := f.invite(t, testKey)

	result, err := f.engine.Respond(context.Background(), inv.ID, model.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationApproved, result.Status)
}

func TestRespond_RecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t, WithTracerProvider(tp))
	inv := f.invite(t, testKey)

	_, err := f.engine.Respond(context.Background(), inv.ID, model.DecisionDecline)
	require.NoError(t, err)
	_, err = f.engine.Respond(context.Background(), "0190b3c4-0000-7000-8000-000000000001", model.DecisionDecline)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "engine.Respond", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("invitation.status", "DECLINED"))
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("invitation.replayed", false))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestLeave_ThenRejoinKeepsCardAndPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Respond(ctx, f.invite(t, testKey).ID, model.DecisionApprove)
	require.NoError(t, err)

	testutil.Exec(t, f.store, "UPDATE enrollments SET current_points = 40")
	testutil.Exec(t, f.store, "UPDATE reward_cards SET points_balance = 40")

	require.NoError(t, f.engine.Leave(ctx, testKey))
	require.NoError(t, f.engine.Leave(ctx, testKey), "leaving twice is a no-op")

	enrollment, err := f.engine.EnrollmentStatus(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCancelled, enrollment.Status)
	card, err := f.engine.Card(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, model.CardInactive, card.Status)

	f.clock.Advance(time.Hour)
	second, err := f.engine.Respond(ctx, f.invite(t, testKey).ID, model.DecisionApprove)
	require.NoError(t, err)

	assert.Equal(t, first.CardID, second.CardID)
	assert.Equal(t, int64(40), *second.PointsBalance)
}

func TestLeave_UnknownEnrollment(t *testing.T) {
	f := newFixture(t)
	err := f.engine.Leave(context.Background(), testKey)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLeave_RecordsErrorStatus(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t, WithTracerProvider(tp))
	err := f.engine.Leave(context.Background(), testKey)
	require.ErrorIs(t, err, errs.ErrNotFound)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "engine.Leave", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestReads_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.EnrollmentStatus(ctx, testKey)
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.engine.Card(ctx, testKey)
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.engine.Invitation(ctx, "0190b3c4-0000-7000-8000-000000000002")
	require.ErrorIs(t, err, errs.ErrInvitationNotFound)

	ns, err := f.engine.Notifications(ctx, testKey.CustomerID, false)
	require.NoError(t, err)
	assert.Empty(t, ns)
}

// Random sequences of invitations, answers, departures and point changes
// must never leave an ACTIVE enrollment without a matching ACTIVE card.
func TestRespond_RandomHistoriesKeepCardsInSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	keys := []model.Key{
		{CustomerID: "1", ProgramID: "10"},
		{CustomerID: "1", ProgramID: "11"},
		{CustomerID: "2", ProgramID: "10"},
		{CustomerID: "3", ProgramID: "12"},
	}
	pending := map[model.Key]model.Invitation{}

	for step := range 200 {
		key := keys[rng.Intn(len(keys))]
		f.clock.Advance(time.Duration(rng.Intn(30)) * time.Minute)

		switch op := rng.Intn(10); {
		case op < 3:
			if _, ok := pending[key]; !ok {
				pending[key] = f.invite(t, key)
			}
		case op < 8:
			inv, ok := pending[key]
			if !ok {
				continue
			}
			d := model.DecisionApprove
			if rng.Intn(3) == 0 {
				d = model.DecisionDecline
			}
			_, err := f.engine.Respond(ctx, inv.ID, d)
			require.NoError(t, err, "step %d", step)
			delete(pending, key)
		case op < 9:
			err := f.engine.Leave(ctx, key)
			if err != nil {
				require.ErrorIs(t, err, errs.ErrNotFound, "step %d", step)
			}
		default:
			testutil.Exec(t, f.store,
				"UPDATE enrollments SET current_points = current_points + 5 WHERE customer_id = ? AND program_id = ?",
				string(key.CustomerID), string(key.ProgramID))
			testutil.Exec(t, f.store,
				"UPDATE reward_cards SET points_balance = points_balance + 5 WHERE customer_id = ? AND program_id = ?",
				string(key.CustomerID), string(key.ProgramID))
		}

		drift, err := f.store.ListCardDrift(ctx)
		require.NoError(t, err)
		require.Empty(t, drift, "step %d", step)

		orphans, err := f.store.ListOrphanCards(ctx)
		require.NoError(t, err)
		require.Empty(t, orphans, "step %d", step)
	}
}
