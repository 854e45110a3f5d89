package model

import (
	"strings"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/errs"
)

// Decision is a customer's answer to an invitation.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionDecline Decision = "DECLINE"
)

// Target returns the invitation status the decision transitions to.
func (d Decision) Target() InvitationStatus {
	if d == DecisionApprove {
		return InvitationApproved
	}
	return InvitationDeclined
}

// ParseDecision accepts approve/accept and decline/reject, case-insensitively.
func ParseDecision(raw string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approve", "approved", "accept", "accepted":
		return DecisionApprove, nil
	case "decline", "declined", "reject", "rejected":
		return DecisionDecline, nil
	}
	return "", errs.Newf(errs.CodeInvalidDecision, "unknown decision %q (want approve or decline)", raw)
}
