package model

import (
	"time"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
)

// InvitationStatus is the lifecycle state of an Invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationApproved InvitationStatus = "APPROVED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// Resolved reports whether the invitation was answered by the customer.
func (s InvitationStatus) Resolved() bool {
	return s == InvitationApproved || s == InvitationDeclined
}

// Terminal reports whether no further transition is possible.
func (s InvitationStatus) Terminal() bool {
	return s != InvitationPending
}

// EnrollmentStatus is the state of a customer's program membership.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentInactive  EnrollmentStatus = "INACTIVE"
	EnrollmentCancelled EnrollmentStatus = "CANCELLED"
)

// CardStatus is the state of a RewardCard.
type CardStatus string

const (
	CardActive   CardStatus = "ACTIVE"
	CardInactive CardStatus = "INACTIVE"
)

// DefaultTier is assigned to newly created cards unless configured otherwise.
const DefaultTier = "STANDARD"

// NotificationKindInvitation marks notifications paired with an Invitation.
const NotificationKindInvitation = "PROGRAM_INVITATION"

// Key identifies the enrollment and card rows of one customer in one program.
type Key struct {
	CustomerID ident.CustomerID
	ProgramID  ident.ProgramID
}

func (k Key) String() string {
	return string(k.CustomerID) + "/" + string(k.ProgramID)
}

// Invitation is an approval request. Rows are never deleted.
type Invitation struct {
	ID             ident.InvitationID
	CustomerID     ident.CustomerID
	BusinessID     ident.BusinessID
	ProgramID      ident.ProgramID
	Status         InvitationStatus
	RequestedAt    time.Time
	RespondedAt    *time.Time
	ExpiresAt      time.Time
	NotificationID string
}

// Key returns the enrollment/card key the invitation targets.
func (i Invitation) Key() Key {
	return Key{CustomerID: i.CustomerID, ProgramID: i.ProgramID}
}

// ExpiredAt reports whether the invitation is past its deadline at now.
func (i Invitation) ExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// InvitationPayload is the structured payload of an invitation notification.
type InvitationPayload struct {
	InvitationID string `json:"invitationId"`
	BusinessID   string `json:"businessId"`
	ProgramID    string `json:"programId"`
}

// Notification is the customer-facing record paired with an Invitation.
type Notification struct {
	ID             string
	CustomerID     ident.CustomerID
	BusinessID     ident.BusinessID
	Kind           string
	Payload        InvitationPayload
	RequiresAction bool
	ActionTaken    bool
	IsRead         bool
	CreatedAt      time.Time
}

// Enrollment is the accounting record of truth for a customer's points.
type Enrollment struct {
	CustomerID     ident.CustomerID
	ProgramID      ident.ProgramID
	BusinessID     ident.BusinessID
	Status         EnrollmentStatus
	CurrentPoints  int64
	EnrolledAt     time.Time
	LastActivityAt time.Time
}

// Key returns the enrollment's (customer, program) key.
func (e Enrollment) Key() Key {
	return Key{CustomerID: e.CustomerID, ProgramID: e.ProgramID}
}

// RewardCard mirrors an Enrollment for display.
type RewardCard struct {
	ID            string
	CustomerID    ident.CustomerID
	ProgramID     ident.ProgramID
	BusinessID    ident.BusinessID
	CardNumber    string
	PointsBalance int64
	Tier          string
	Status        CardStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key returns the card's (customer, program) key.
func (c RewardCard) Key() Key {
	return Key{CustomerID: c.CustomerID, ProgramID: c.ProgramID}
}

// Result is what a response to an invitation returns. Replays of an already
// resolved invitation return the same Status, CardID and PointsBalance.
type Result struct {
	InvitationID  ident.InvitationID `json:"invitation_id"`
	Status        InvitationStatus   `json:"status"`
	CardID        string             `json:"card_id,omitempty"`
	CardNumber    string             `json:"card_number,omitempty"`
	PointsBalance *int64             `json:"points_balance,omitempty"`
	Replayed      bool               `json:"replayed"`
}
