package provision

import "github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"

// Action is what provisioning does to one record.
type Action string

const (
	ActionKeep       Action = "KEEP"
	ActionCreate     Action = "CREATE"
	ActionReactivate Action = "REACTIVATE"
	ActionResync     Action = "RESYNC"
)

// Writes reports whether the action changes the stored record.
func (a Action) Writes() bool {
	return a != ActionKeep
}

// Decision is the outcome of Plan.
type Decision struct {
	Enrollment Action
	Card       Action

	// Points is the enrollment balance after the enrollment step, and
	// therefore the balance the card must show.
	Points int64
}

// Noop reports whether neither record needs a write.
func (d Decision) Noop() bool {
	return !d.Enrollment.Writes() && !d.Card.Writes()
}

// Plan decides how to bring an enrollment and its card to ACTIVE.
// A nil argument means the record does not exist.
//
// Enrollment:
//   - absent: CREATE with zero points
//   - not ACTIVE: REACTIVATE, points preserved
//   - ACTIVE: KEEP
//
// Card (balance always taken from the enrollment):
//   - absent: CREATE
//   - INACTIVE: REACTIVATE
//   - ACTIVE with a different balance: RESYNC
//   - ACTIVE with the same balance: KEEP
func Plan(enrollment *model.Enrollment, card *model.RewardCard) Decision {
	var d Decision

	switch {
	case enrollment == nil:
		d.Enrollment = ActionCreate
		d.Points = 0
	case enrollment.Status != model.EnrollmentActive:
		d.Enrollment = ActionReactivate
		d.Points = enrollment.CurrentPoints
	default:
		d.Enrollment = ActionKeep
		d.Points = enrollment.CurrentPoints
	}

	switch {
	case card == nil:
		d.Card = ActionCreate
	case card.Status != model.CardActive:
		d.Card = ActionReactivate
	case card.PointsBalance != d.Points:
		d.Card = ActionResync
	default:
		d.Card = ActionKeep
	}

	return d
}
