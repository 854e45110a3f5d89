package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

// EnrollmentStatus returns the enrollment for key, or errs.ErrNotFound.
func (e *Engine) EnrollmentStatus(ctx context.Context, key model.Key) (model.Enrollment, error) {
	en, err := e.store.GetEnrollment(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Enrollment{}, notFound("enrollment", key)
	}
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("read enrollment %s: %w", key, err)
	}
	return en, nil
}

// Card returns the reward card for key, or errs.ErrNotFound.
func (e *Engine) Card(ctx context.Context, key model.Key) (model.RewardCard, error) {
	c, err := e.store.GetCard(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RewardCard{}, notFound("reward card", key)
	}
	if err != nil {
		return model.RewardCard{}, fmt.Errorf("read card %s: %w", key, err)
	}
	return c, nil
}

// Invitation returns one invitation, or errs.ErrInvitationNotFound.
func (e *Engine) Invitation(ctx context.Context, id ident.InvitationID) (model.Invitation, error) {
	inv, err := e.store.GetInvitation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invitation{}, invitationNotFound(id)
	}
	if err != nil {
		return model.Invitation{}, fmt.Errorf("read invitation %s: %w", id, err)
	}
	return inv, nil
}

// Notifications lists a customer's notifications, newest first.
func (e *Engine) Notifications(ctx context.Context, customerID ident.CustomerID, unreadOnly bool) ([]model.Notification, error) {
	ns, err := e.store.ListNotifications(ctx, customerID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", customerID, err)
	}
	return ns, nil
}
