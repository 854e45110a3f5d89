// Package invite creates and expires program invitations.
//
// An invitation and its notification are written together in one
// transaction. At most one invitation per customer and program may be
// PENDING; the storage layer's partial unique index enforces this, and
// Create reports a collision as errs.ErrDuplicatePendingInvitation.
package invite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/errs"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/notify"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
)

// DefaultTTL is how long an invitation stays answerable.
const DefaultTTL = 7 * 24 * time.Hour

const tracerName = "github.com/redakrarssi/Gudcity-REDA-sub003/internal/invite"

// Manager owns invitation creation and expiry.
type Manager struct {
	store    *store.Store
	ids      ident.Generator
	clock    model.Clock
	ttl      time.Duration
	notifier notify.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the invitation lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock sets the clock used for request and expiry timestamps.
func WithClock(clock model.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithIDs sets the generator for invitation and notification ids.
func WithIDs(ids ident.Generator) Option {
	return func(m *Manager) {
		m.ids = ids
	}
}

// WithNotifier sets the delivery hand-off for new notifications.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTracerProvider sets where manager spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		m.tracer = tp.Tracer(tracerName)
	}
}

// New creates a Manager over s.
func New(s *store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		ids:    ident.UUIDv7Generator{},
		clock:  model.SystemClock{},
		ttl:    DefaultTTL,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notify.LogNotifier{Logger: m.logger}
	}
	return m
}

// Create invites a customer into a program.
//
// A stale PENDING invitation for the same pair is expired first, so only a
// live one blocks the new invitation.
func (m *Manager) Create(ctx context.Context, customerID ident.CustomerID, businessID ident.BusinessID, programID ident.ProgramID) (model.Invitation, error) {
	ctx, span := m.tracer.Start(ctx, "invite.Create", trace.WithAttributes(
		attribute.String("customer.id", string(customerID)),
		attribute.String("program.id", string(programID)),
	))
	defer span.End()

	now := m.clock.Now()
	key := model.Key{CustomerID: customerID, ProgramID: programID}

	inv := model.Invitation{
		ID:             ident.InvitationID(m.ids.NewID()),
		CustomerID:     customerID,
		BusinessID:     businessID,
		ProgramID:      programID,
		Status:         model.InvitationPending,
		RequestedAt:    now,
		ExpiresAt:      now.Add(m.ttl),
		NotificationID: m.ids.NewID(),
	}
	n := model.Notification{
		ID:         inv.NotificationID,
		CustomerID: customerID,
		BusinessID: businessID,
		Kind:       model.NotificationKindInvitation,
		Payload: model.InvitationPayload{
			InvitationID: string(inv.ID),
			BusinessID:   string(businessID),
			ProgramID:    string(programID),
		},
		RequiresAction: true,
		CreatedAt:      now,
	}

	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		expired, err := tx.ExpirePending(ctx, now, &key)
		if err != nil {
			return err
		}
		if expired > 0 {
			m.logger.InfoContext(ctx, "stale invitation expired",
				"customer_id", customerID, "program_id", programID)
		}

		if err := tx.InsertNotification(ctx, n); err != nil {
			return err
		}
		inserted, err := tx.InsertInvitation(ctx, inv)
		if err != nil {
			return err
		}
		if !inserted {
			return errs.WithMetadata(errs.CodeDuplicatePendingInvitation,
				fmt.Sprintf("customer %s already has a pending invitation to program %s", customerID, programID),
				map[string]string{
					"customer_id": string(customerID),
					"program_id":  string(programID),
				},
			)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !errs.IsDomain(err) {
			err = fmt.Errorf("create invitation: %w", err)
		}
		return model.Invitation{}, err
	}

	span.SetAttributes(attribute.String("invitation.id", string(inv.ID)))
	m.logger.InfoContext(ctx, "invitation created",
		"invitation_id", inv.ID,
		"customer_id", customerID,
		"business_id", businessID,
		"program_id", programID,
		"expires_at", inv.ExpiresAt,
	)
	notify.Deliver(ctx, m.notifier, m.logger, n)
	return inv, nil
}

// ExpireStale expires every PENDING invitation whose deadline is at or before
// now and closes the action on its notification. Enrollments and cards are
// not touched. Returns the number of invitations expired.
func (m *Manager) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := m.tracer.Start(ctx, "invite.ExpireStale")
	defer span.End()

	var n int64
	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		n, err = tx.ExpirePending(ctx, now, nil)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("invitations.expired", n))
	m.logger.InfoContext(ctx, "expiry sweep finished", "expired", n)
	return n, nil
}

// Pending lists a customer's PENDING invitations, newest first.
// Invitations past their deadline that no sweep has expired yet are omitted.
func (m *Manager) Pending(ctx context.Context, customerID ident.CustomerID) ([]model.Invitation, error) {
	all, err := m.store.ListInvitations(ctx, customerID, model.InvitationPending)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}

	now := m.clock.Now()
	live := make([]model.Invitation, 0, len(all))
	for _, inv := range all {
		if !inv.ExpiredAt(now) {
			live = append(live, inv)
		}
	}
	return live, nil
}

// TTL reports the configured invitation lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
