package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/errs"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/notify"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
)

// respondOutcome carries what happened inside the transaction out to the
// post-commit steps.
type respondOutcome struct {
	result         model.Result
	invitation     model.Invitation
	fresh          bool // this call performed the transition
	expired        bool // this call moved the invitation to EXPIRED
	notificationID string
}

// Respond applies a customer's decision to an invitation.
//
// Outcomes:
//   - PENDING, approve: enrollment and card provisioned, notification closed,
//     returns APPROVED with the card id and balance
//   - PENDING, decline: notification closed, no enrollment or card writes,
//     returns DECLINED
//   - already APPROVED/DECLINED: no writes, returns the earlier result with
//     Replayed set
//   - EXPIRED, or PENDING past its deadline: errs.ErrInvitationExpired
//   - unknown id: errs.ErrInvitationNotFound
//
// Any storage failure rolls back the whole transaction; retrying is safe.
func (e *Engine) Respond(ctx context.Context, id ident.InvitationID, decision model.Decision) (model.Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Respond", trace.WithAttributes(
		attribute.String("invitation.id", string(id)),
		attribute.String("invitation.decision", string(decision)),
	))
	defer span.End()

	result, err := e.respond(ctx, id, decision)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errs.IsDomain(err) {
			e.logger.InfoContext(ctx, "invitation response rejected",
				"invitation_id", id, "decision", decision, "code", errs.CodeOf(err))
		} else {
			e.logger.ErrorContext(ctx, "invitation response failed",
				"invitation_id", id, "decision", decision, "error", err)
		}
		return model.Result{}, err
	}

	span.SetAttributes(
		attribute.String("invitation.status", string(result.Status)),
		attribute.Bool("invitation.replayed", result.Replayed),
	)
	return result, nil
}

func (e *Engine) respond(ctx context.Context, id ident.InvitationID, decision model.Decision) (model.Result, error) {
	if decision != model.DecisionApprove && decision != model.DecisionDecline {
		return model.Result{}, errs.Newf(errs.CodeInvalidDecision, "unknown decision %q", decision)
	}

	now := e.clock.Now()
	var out respondOutcome

	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		out, err = e.transition(ctx, tx, id, decision, now)
		return err
	})
	if err != nil {
		return model.Result{}, err
	}

	if out.expired {
		e.publish(ctx, out.notificationID)
		return model.Result{}, invitationExpired(out.invitation)
	}

	if out.fresh {
		e.logger.InfoContext(ctx, "invitation resolved",
			"invitation_id", id,
			"customer_id", out.invitation.CustomerID,
			"program_id", out.invitation.ProgramID,
			"status", out.result.Status,
			"card_id", out.result.CardID,
		)
		e.publish(ctx, out.notificationID)
	} else {
		e.logger.DebugContext(ctx, "invitation response replayed",
			"invitation_id", id, "status", out.result.Status)
	}

	return out.result, nil
}

// transition runs inside the response transaction.
func (e *Engine) transition(
	ctx context.Context,
	tx *store.Tx,
	id ident.InvitationID,
	decision model.Decision,
	now time.Time,
) (respondOutcome, error) {
	inv, err := loadInvitation(ctx, tx, id)
	if err != nil {
		return respondOutcome{}, err
	}

	if inv.Status == model.InvitationPending && inv.ExpiredAt(now) {
		swapped, err := tx.TransitionInvitation(ctx, id, model.InvitationPending, model.InvitationExpired, now)
		if err != nil {
			return respondOutcome{}, err
		}
		if swapped {
			if _, err := tx.CloseNotificationAction(ctx, inv.NotificationID); err != nil {
				return respondOutcome{}, err
			}
			inv.Status = model.InvitationExpired
			return respondOutcome{invitation: inv, expired: true, notificationID: inv.NotificationID}, nil
		}
		if inv, err = loadInvitation(ctx, tx, id); err != nil {
			return respondOutcome{}, err
		}
	}

	if inv.Status == model.InvitationPending {
		swapped, err := tx.TransitionInvitation(ctx, id, model.InvitationPending, decision.Target(), now)
		if err != nil {
			return respondOutcome{}, err
		}
		if swapped {
			result, err := e.resolve(ctx, tx, inv, decision, now)
			if err != nil {
				return respondOutcome{}, err
			}
			return respondOutcome{
				result:         result,
				invitation:     inv,
				fresh:          true,
				notificationID: inv.NotificationID,
			}, nil
		}
		// Another response resolved it between our read and our update.
		if inv, err = loadInvitation(ctx, tx, id); err != nil {
			return respondOutcome{}, err
		}
	}

	result, err := replay(ctx, tx, inv)
	if err != nil {
		return respondOutcome{}, err
	}
	return respondOutcome{result: result, invitation: inv}, nil
}

// resolve performs the side effects of a fresh transition.
func (e *Engine) resolve(ctx context.Context, tx *store.Tx, inv model.Invitation, decision model.Decision, now time.Time) (model.Result, error) {
	result := model.Result{InvitationID: inv.ID, Status: decision.Target()}

	if decision == model.DecisionApprove {
		out, err := e.provisioner.Apply(ctx, tx, inv.Key(), inv.BusinessID, now)
		if err != nil {
			return model.Result{}, err
		}
		balance := out.Card.PointsBalance
		result.CardID = out.Card.ID
		result.CardNumber = out.Card.CardNumber
		result.PointsBalance = &balance
	}

	if _, err := tx.ResolveNotification(ctx, inv.NotificationID); err != nil {
		return model.Result{}, err
	}
	return result, nil
}

// replay rebuilds the result of an already resolved invitation without
// writing anything.
func replay(ctx context.Context, tx *store.Tx, inv model.Invitation) (model.Result, error) {
	switch inv.Status {
	case model.InvitationExpired:
		return model.Result{}, invitationExpired(inv)

	case model.InvitationDeclined:
		return model.Result{InvitationID: inv.ID, Status: model.InvitationDeclined, Replayed: true}, nil

	case model.InvitationApproved:
		card, err := tx.GetCard(ctx, inv.Key())
		if errors.Is(err, sql.ErrNoRows) {
			return model.Result{}, enrollmentDrift(inv)
		}
		if err != nil {
			return model.Result{}, fmt.Errorf("replay %s: read card: %w", inv.ID, err)
		}
		balance := card.PointsBalance
		return model.Result{
			InvitationID:  inv.ID,
			Status:        model.InvitationApproved,
			CardID:        card.ID,
			CardNumber:    card.CardNumber,
			PointsBalance: &balance,
			Replayed:      true,
		}, nil
	}

	return model.Result{}, fmt.Errorf("replay %s: invitation still %s after lost compare-and-set", inv.ID, inv.Status)
}

func loadInvitation(ctx context.Context, tx *store.Tx, id ident.InvitationID) (model.Invitation, error) {
	inv, err := tx.GetInvitation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invitation{}, invitationNotFound(id)
	}
	if err != nil {
		return model.Invitation{}, fmt.Errorf("load invitation %s: %w", id, err)
	}
	return inv, nil
}

// publish hands the committed notification to the delivery transport.
func (e *Engine) publish(ctx context.Context, notificationID string) {
	n, err := e.store.GetNotification(ctx, notificationID)
	if err != nil {
		e.logger.WarnContext(ctx, "notification reload failed",
			"notification_id", notificationID, "error", err)
		return
	}
	notify.Deliver(ctx, e.notifier, e.logger, n)
}
