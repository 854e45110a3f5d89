// Package reconcile repairs enrollments, cards and notifications that have
// drifted apart.
//
// A sweep looks for three contradictory states:
//   - an ACTIVE enrollment whose card is missing, inactive or off-balance
//   - an ACTIVE card whose enrollment is missing or no longer ACTIVE
//   - an answered or expired invitation whose notification still offers
//     the accept/decline action, or an answered one left unread
//
// Each record is repaired in its own transaction. Card repairs re-read the
// enrollment inside that transaction and skip it once it is no longer ACTIVE. A record that fails is
// logged and reported; the sweep carries on. A consistent store costs reads
// only. Sweeps are safe to run during live traffic because every repair is a
// conditional write.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/provision"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
)

const tracerName = "github.com/redakrarssi/Gudcity-REDA-sub003/internal/reconcile"

// Applier brings the card of an ACTIVE enrollment back in balance.
// Repair must never create or reactivate an enrollment; it returns
// provision.ErrEnrollmentInactive when the enrollment is no longer ACTIVE.
// *provision.Provisioner implements it.
type Applier interface {
	Repair(ctx context.Context, tx provision.Tx, key model.Key, businessID ident.BusinessID, now time.Time) (provision.Outcome, error)
}

// Repair kinds reported in failures.
const (
	KindCard         = "card"
	KindOrphanCard   = "orphan_card"
	KindNotification = "notification"
)

// Failure describes one record the sweep could not repair.
type Failure struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
	Err  string `json:"error"`
}

// Report summarises a sweep.
type Report struct {
	Scanned               int       `json:"scanned"`
	Repaired              int       `json:"repaired"`
	CardsRepaired         int       `json:"cards_repaired"`
	CardsDeactivated      int       `json:"cards_deactivated"`
	NotificationsRepaired int       `json:"notifications_repaired"`
	Failures              []Failure `json:"failures"`
}

// Sweep scans the store for drift and repairs it.
type Sweep struct {
	store   *store.Store
	applier Applier
	clock   model.Clock
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Sweep.
type Option func(*Sweep)

// WithClock sets the clock used for repair timestamps.
func WithClock(clock model.Clock) Option {
	return func(s *Sweep) {
		s.clock = clock
	}
}

// WithLogger sets the sweep logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweep) {
		s.logger = logger
	}
}

// WithTracerProvider sets where sweep spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Sweep) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// New creates a Sweep that repairs cards with applier.
func New(s *store.Store, applier Applier, opts ...Option) *Sweep {
	sw := &Sweep{
		store:   s,
		applier: applier,
		clock:   model.SystemClock{},
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw
}

// Run performs one sweep.
//
// An error is returned only when a scan query fails; per-record repair
// failures are listed in Report.Failures.
func (s *Sweep) Run(ctx context.Context) (Report, error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.Run")
	defer span.End()

	report := Report{Failures: []Failure{}}

	steps := []func(context.Context, *Report) error{
		s.repairCards,
		s.deactivateOrphans,
		s.closeNotifications,
	}
	for _, step := range steps {
		if err := step(ctx, &report); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, err
		}
	}

	report.Repaired = report.CardsRepaired + report.CardsDeactivated + report.NotificationsRepaired

	span.SetAttributes(
		attribute.Int("reconcile.scanned", report.Scanned),
		attribute.Int("reconcile.repaired", report.Repaired),
		attribute.Int("reconcile.failures", len(report.Failures)),
	)
	s.logger.InfoContext(ctx, "reconcile finished",
		"scanned", report.Scanned,
		"repaired", report.Repaired,
		"failures", len(report.Failures),
	)
	return report, nil
}

func (s *Sweep) repairCards(ctx context.Context, report *Report) error {
	drift, err := s.store.ListCardDrift(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	report.Scanned += len(drift)

	for _, d := range drift {
		var (
			out     provision.Outcome
			skipped bool
		)
		err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			out, err = s.applier.Repair(ctx, tx, d.Key, d.BusinessID, s.clock.Now())
			if errors.Is(err, provision.ErrEnrollmentInactive) {
				skipped = true
				return nil
			}
			return err
		})
		if err != nil {
			s.fail(ctx, report, KindCard, d.Key.String(), err)
			continue
		}
		if skipped {
			// Left or cancelled since the scan.
			s.logger.DebugContext(ctx, "card repair skipped",
				"customer_id", d.Key.CustomerID,
				"program_id", d.Key.ProgramID,
			)
			continue
		}
		if out.Wrote() {
			report.CardsRepaired++
			s.logger.InfoContext(ctx, "card repaired",
				"customer_id", d.Key.CustomerID,
				"program_id", d.Key.ProgramID,
				"card", out.Decision.Card,
				"points", out.Card.PointsBalance,
			)
		}
	}
	return nil
}

func (s *Sweep) deactivateOrphans(ctx context.Context, report *Report) error {
	orphans, err := s.store.ListOrphanCards(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	report.Scanned += len(orphans)

	for _, c := range orphans {
		var changed bool
		err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			changed, err = tx.DeactivateCard(ctx, c.Key(), s.clock.Now())
			return err
		})
		if err != nil {
			s.fail(ctx, report, KindOrphanCard, c.Key().String(), err)
			continue
		}
		if changed {
			report.CardsDeactivated++
			s.logger.InfoContext(ctx, "orphan card deactivated",
				"card_id", c.ID,
				"customer_id", c.CustomerID,
				"program_id", c.ProgramID,
			)
		}
	}
	return nil
}

func (s *Sweep) closeNotifications(ctx context.Context, report *Report) error {
	invitations, err := s.store.ListUnclosedResolvedInvitations(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	report.Scanned += len(invitations)

	for _, inv := range invitations {
		var changed bool
		err := s.store.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			if inv.Status.Resolved() {
				changed, err = tx.ResolveNotification(ctx, inv.NotificationID)
			} else {
				changed, err = tx.CloseNotificationAction(ctx, inv.NotificationID)
			}
			return err
		})
		if err != nil {
			s.fail(ctx, report, KindNotification, inv.NotificationID, err)
			continue
		}
		if changed {
			report.NotificationsRepaired++
			s.logger.InfoContext(ctx, "notification action closed",
				"notification_id", inv.NotificationID,
				"invitation_id", inv.ID,
				"status", inv.Status,
			)
		}
	}
	return nil
}

func (s *Sweep) fail(ctx context.Context, report *Report, kind, ref string, err error) {
	s.logger.ErrorContext(ctx, "reconcile repair failed", "kind", kind, "ref", ref, "error", err)
	report.Failures = append(report.Failures, Failure{Kind: kind, Ref: ref, Err: err.Error()})
}
