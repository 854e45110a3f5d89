package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

const enrollmentColumns = `customer_id, program_id, business_id, status, current_points, enrolled_at, last_activity_at`

// GetEnrollment retrieves the enrollment for a customer and program.
// Returns sql.ErrNoRows if not found.
func (q queries) GetEnrollment(ctx context.Context, key model.Key) (model.Enrollment, error) {
	row := q.queryRow(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE customer_id = ? AND program_id = ?
	`, string(key.CustomerID), string(key.ProgramID))

	return scanEnrollment(row)
}

// ActivateEnrollment creates an ACTIVE enrollment or reactivates an existing
// non-ACTIVE one for the same customer and program.
//
// Uses INSERT ... ON CONFLICT(customer_id, program_id) DO UPDATE, so two
// concurrent calls can never produce two rows. On reactivation only status
// and last_activity_at change; current_points and enrolled_at are preserved.
// An already ACTIVE row is left untouched (changed=false).
func (q queries) ActivateEnrollment(ctx context.Context, e model.Enrollment) (changed bool, err error) {
	changed, err = q.execAffected(ctx, `
		INSERT INTO enrollments
		(`+enrollmentColumns+`)
		VALUES (?, ?, ?, 'ACTIVE', ?, ?, ?)
		ON CONFLICT(customer_id, program_id) DO UPDATE
		SET status = 'ACTIVE', last_activity_at = excluded.last_activity_at
		WHERE enrollments.status <> 'ACTIVE'
	`,
		string(e.CustomerID),
		string(e.ProgramID),
		string(e.BusinessID),
		e.CurrentPoints,
		toMillis(e.EnrolledAt),
		toMillis(e.LastActivityAt),
	)
	if err != nil {
		return false, fmt.Errorf("activate enrollment: %w", err)
	}
	return changed, nil
}

// SetEnrollmentStatus changes the status of an existing enrollment.
// Returns changed=false if the row does not exist or already has the status.
func (q queries) SetEnrollmentStatus(ctx context.Context, key model.Key, status model.EnrollmentStatus, at time.Time) (changed bool, err error) {
	changed, err = q.execAffected(ctx, `
		UPDATE enrollments
		SET status = ?, last_activity_at = ?
		WHERE customer_id = ? AND program_id = ? AND status <> ?
	`, string(status), toMillis(at), string(key.CustomerID), string(key.ProgramID), string(status))
	if err != nil {
		return false, fmt.Errorf("set enrollment status: %w", err)
	}
	return changed, nil
}

// CardDrift is an ACTIVE enrollment whose card is missing, inactive or shows
// a different balance.
type CardDrift struct {
	Key           model.Key
	BusinessID    ident.BusinessID
	CurrentPoints int64
}

// ListCardDrift returns every ACTIVE enrollment lacking a matching ACTIVE
// card with the same balance. Results are ordered by customer and program.
func (q queries) ListCardDrift(ctx context.Context) ([]CardDrift, error) {
	rows, err := q.query(ctx, `
		SELECT e.customer_id, e.program_id, e.business_id, e.current_points
		FROM enrollments e
		LEFT JOIN reward_cards c
		       ON c.customer_id = e.customer_id AND c.program_id = e.program_id
		WHERE e.status = 'ACTIVE'
		  AND (c.id IS NULL OR c.status <> 'ACTIVE' OR c.points_balance <> e.current_points)
		ORDER BY e.customer_id ASC, e.program_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query card drift: %w", err)
	}
	defer rows.Close()

	drift := []CardDrift{}
	for rows.Next() {
		var d CardDrift
		var customer, program, business string
		if err := rows.Scan(&customer, &program, &business, &d.CurrentPoints); err != nil {
			return nil, fmt.Errorf("scan card drift: %w", err)
		}
		d.Key = model.Key{CustomerID: ident.CustomerID(customer), ProgramID: ident.ProgramID(program)}
		d.BusinessID = ident.BusinessID(business)
		drift = append(drift, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate card drift: %w", err)
	}
	return drift, nil
}

func scanEnrollment(row rowScanner) (model.Enrollment, error) {
	var (
		e                           model.Enrollment
		customer, program, business string
		status                      string
		enrolledAt, lastActivityAt  int64
	)
	if err := row.Scan(&customer, &program, &business, &status,
		&e.CurrentPoints, &enrolledAt, &lastActivityAt); err != nil {
		return model.Enrollment{}, err
	}

	e.CustomerID = ident.CustomerID(customer)
	e.ProgramID = ident.ProgramID(program)
	e.BusinessID = ident.BusinessID(business)
	e.Status = model.EnrollmentStatus(status)
	e.EnrolledAt = fromMillis(enrolledAt)
	e.LastActivityAt = fromMillis(lastActivityAt)
	return e, nil
}
