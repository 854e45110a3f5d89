package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

const invitationColumns = `id, customer_id, business_id, program_id, status, requested_at, responded_at, expires_at, notification_id`

// InsertInvitation inserts an invitation record.
// Uses ON CONFLICT DO NOTHING so the partial unique index on open invitations
// decides duplicates: inserted=false means a PENDING invitation already
// exists for the same customer and program (or the id is already taken).
//
// Note: The notification referenced by NotificationID must exist (foreign key constraint).
func (q queries) InsertInvitation(ctx context.Context, inv model.Invitation) (inserted bool, err error) {
	inserted, err = q.execAffected(ctx, `
		INSERT INTO invitations
		(`+invitationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		string(inv.ID),
		string(inv.CustomerID),
		string(inv.BusinessID),
		string(inv.ProgramID),
		string(inv.Status),
		toMillis(inv.RequestedAt),
		nullMillis(inv.RespondedAt),
		toMillis(inv.ExpiresAt),
		inv.NotificationID,
	)
	if err != nil {
		return false, fmt.Errorf("insert invitation: %w", err)
	}
	return inserted, nil
}

// GetInvitation retrieves a single invitation by ID.
// Returns sql.ErrNoRows if not found.
func (q queries) GetInvitation(ctx context.Context, id ident.InvitationID) (model.Invitation, error) {
	row := q.queryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE id = ?
	`, string(id))

	return scanInvitation(row)
}

// TransitionInvitation moves an invitation from one status to another only if
// it is still in the expected status (compare-and-set).
//
// Returns swapped=false when the row was not in status from, which under
// concurrent responses means another caller already resolved it.
func (q queries) TransitionInvitation(
	ctx context.Context,
	id ident.InvitationID,
	from, to model.InvitationStatus,
	at time.Time,
) (swapped bool, err error) {
	respondedAt := &at
	if to == model.InvitationExpired {
		respondedAt = nil
	}

	swapped, err = q.execAffected(ctx, `
		UPDATE invitations
		SET status = ?, responded_at = ?
		WHERE id = ? AND status = ?
	`, string(to), nullMillis(respondedAt), string(id), string(from))
	if err != nil {
		return false, fmt.Errorf("transition invitation: %w", err)
	}
	return swapped, nil
}

// ExpirePending marks every PENDING invitation whose deadline is at or before
// now as EXPIRED, and closes the action on their notifications.
// When key is non-nil only that customer and program are considered.
//
// Conditional on status = 'PENDING', so repeated calls are no-ops.
// Returns the number of invitations expired.
func (q queries) ExpirePending(ctx context.Context, now time.Time, key *model.Key) (int64, error) {
	scope := ""
	args := []any{toMillis(now)}
	if key != nil {
		scope = " AND customer_id = ? AND program_id = ?"
		args = append(args, string(key.CustomerID), string(key.ProgramID))
	}

	_, err := q.exec(ctx, `
		UPDATE notifications
		SET action_taken = TRUE
		WHERE action_taken = FALSE AND id IN (
			SELECT notification_id FROM invitations
			WHERE status = 'PENDING' AND expires_at <= ?`+scope+`
		)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("expire pending: close notifications: %w", err)
	}

	result, err := q.exec(ctx, `
		UPDATE invitations
		SET status = 'EXPIRED'
		WHERE status = 'PENDING' AND expires_at <= ?`+scope, args...)
	if err != nil {
		return 0, fmt.Errorf("expire pending: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire pending: rows affected: %w", err)
	}
	return n, nil
}

// ListInvitations returns a customer's invitations, newest first.
// An empty status returns all of them.
func (q queries) ListInvitations(ctx context.Context, customerID ident.CustomerID, status model.InvitationStatus) ([]model.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE customer_id = ?`
	args := []any{string(customerID)}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY requested_at DESC, id DESC`

	return q.listInvitations(ctx, query, args...)
}

// ListUnclosedResolvedInvitations returns answered or expired invitations
// whose notification still offers the accept/decline action, plus answered
// invitations whose notification is still unread.
func (q queries) ListUnclosedResolvedInvitations(ctx context.Context) ([]model.Invitation, error) {
	return q.listInvitations(ctx, `
		SELECT i.id, i.customer_id, i.business_id, i.program_id, i.status,
		       i.requested_at, i.responded_at, i.expires_at, i.notification_id
		FROM invitations i
		JOIN notifications n ON n.id = i.notification_id
		WHERE (i.status <> 'PENDING' AND n.action_taken = FALSE)
		   OR (i.status IN ('APPROVED', 'DECLINED') AND n.is_read = FALSE)
		ORDER BY i.requested_at ASC, i.id ASC
	`)
}

func (q queries) listInvitations(ctx context.Context, query string, args ...any) ([]model.Invitation, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invitations: %w", err)
	}
	defer rows.Close()

	invitations := []model.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return invitations, nil
}

func scanInvitation(row rowScanner) (model.Invitation, error) {
	var (
		inv                             model.Invitation
		id, customer, business, program string
		status                          string
		requestedAt, expiresAt          int64
		respondedAt                     sql.NullInt64
	)
	if err := row.Scan(&id, &customer, &business, &program, &status,
		&requestedAt, &respondedAt, &expiresAt, &inv.NotificationID); err != nil {
		return model.Invitation{}, err
	}

	inv.ID = ident.InvitationID(id)
	inv.CustomerID = ident.CustomerID(customer)
	inv.BusinessID = ident.BusinessID(business)
	inv.ProgramID = ident.ProgramID(program)
	inv.Status = model.InvitationStatus(status)
	inv.RequestedAt = fromMillis(requestedAt)
	inv.RespondedAt = fromNullMillis(respondedAt)
	inv.ExpiresAt = fromMillis(expiresAt)
	return inv, nil
}
