package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/reconcile"
)

// Views are the wire shapes of command output. Timestamps are RFC 3339 UTC.

type invitationView struct {
	ID             string  `json:"id"`
	CustomerID     string  `json:"customer_id"`
	BusinessID     string  `json:"business_id"`
	ProgramID      string  `json:"program_id"`
	Status         string  `json:"status"`
	RequestedAt    string  `json:"requested_at"`
	RespondedAt    *string `json:"responded_at,omitempty"`
	ExpiresAt      string  `json:"expires_at"`
	NotificationID string  `json:"notification_id"`
}

func newInvitationView(inv model.Invitation) invitationView {
	v := invitationView{
		ID:             string(inv.ID),
		CustomerID:     string(inv.CustomerID),
		BusinessID:     string(inv.BusinessID),
		ProgramID:      string(inv.ProgramID),
		Status:         string(inv.Status),
		RequestedAt:    formatTime(inv.RequestedAt),
		ExpiresAt:      formatTime(inv.ExpiresAt),
		NotificationID: inv.NotificationID,
	}
	if inv.RespondedAt != nil {
		at := formatTime(*inv.RespondedAt)
		v.RespondedAt = &at
	}
	return v
}

func (v invitationView) writeText(w io.Writer) {
	fmt.Fprintf(w, "Invitation %s\n", v.ID)
	fmt.Fprintf(w, "  Customer:  %s\n", v.CustomerID)
	fmt.Fprintf(w, "  Business:  %s\n", v.BusinessID)
	fmt.Fprintf(w, "  Program:   %s\n", v.ProgramID)
	fmt.Fprintf(w, "  Status:    %s\n", v.Status)
	fmt.Fprintf(w, "  Requested: %s\n", v.RequestedAt)
	if v.RespondedAt != nil {
		fmt.Fprintf(w, "  Responded: %s\n", *v.RespondedAt)
	}
	fmt.Fprintf(w, "  Expires:   %s\n", v.ExpiresAt)
}

type invitationList struct {
	Invitations []invitationView `json:"invitations"`
}

func (l invitationList) writeText(w io.Writer) {
	if len(l.Invitations) == 0 {
		fmt.Fprintln(w, "No pending invitations.")
		return
	}
	for _, inv := range l.Invitations {
		fmt.Fprintf(w, "%s  program=%s business=%s expires=%s\n",
			inv.ID, inv.ProgramID, inv.BusinessID, inv.ExpiresAt)
	}
}

type resultView struct {
	model.Result
}

func (v resultView) writeText(w io.Writer) {
	fmt.Fprintf(w, "Invitation %s %s", v.InvitationID, v.Status)
	if v.Replayed {
		fmt.Fprint(w, " (already answered)")
	}
	fmt.Fprintln(w)
	if v.CardID != "" {
		fmt.Fprintf(w, "  Card:    %s (%s)\n", v.CardNumber, v.CardID)
	}
	if v.PointsBalance != nil {
		fmt.Fprintf(w, "  Points:  %d\n", *v.PointsBalance)
	}
}

type enrollmentView struct {
	CustomerID     string `json:"customer_id"`
	ProgramID      string `json:"program_id"`
	BusinessID     string `json:"business_id"`
	Status         string `json:"status"`
	CurrentPoints  int64  `json:"current_points"`
	EnrolledAt     string `json:"enrolled_at"`
	LastActivityAt string `json:"last_activity_at"`
}

func newEnrollmentView(e model.Enrollment) enrollmentView {
	return enrollmentView{
		CustomerID:     string(e.CustomerID),
		ProgramID:      string(e.ProgramID),
		BusinessID:     string(e.BusinessID),
		Status:         string(e.Status),
		CurrentPoints:  e.CurrentPoints,
		EnrolledAt:     formatTime(e.EnrolledAt),
		LastActivityAt: formatTime(e.LastActivityAt),
	}
}

func (v enrollmentView) writeText(w io.Writer) {
	fmt.Fprintf(w, "Enrollment %s/%s\n", v.CustomerID, v.ProgramID)
	fmt.Fprintf(w, "  Business:      %s\n", v.BusinessID)
	fmt.Fprintf(w, "  Status:        %s\n", v.Status)
	fmt.Fprintf(w, "  Points:        %d\n", v.CurrentPoints)
	fmt.Fprintf(w, "  Enrolled:      %s\n", v.EnrolledAt)
	fmt.Fprintf(w, "  Last activity: %s\n", v.LastActivityAt)
}

type cardView struct {
	ID            string `json:"id"`
	CustomerID    string `json:"customer_id"`
	ProgramID     string `json:"program_id"`
	BusinessID    string `json:"business_id"`
	CardNumber    string `json:"card_number"`
	PointsBalance int64  `json:"points_balance"`
	Tier          string `json:"tier"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func newCardView(c model.RewardCard) cardView {
	return cardView{
		ID:            c.ID,
		CustomerID:    string(c.CustomerID),
		ProgramID:     string(c.ProgramID),
		BusinessID:    string(c.BusinessID),
		CardNumber:    c.CardNumber,
		PointsBalance: c.PointsBalance,
		Tier:          c.Tier,
		Status:        string(c.Status),
		CreatedAt:     formatTime(c.CreatedAt),
		UpdatedAt:     formatTime(c.UpdatedAt),
	}
}

func (v cardView) writeText(w io.Writer) {
	fmt.Fprintf(w, "Card %s\n", v.CardNumber)
	fmt.Fprintf(w, "  ID:       %s\n", v.ID)
	fmt.Fprintf(w, "  Customer: %s\n", v.CustomerID)
	fmt.Fprintf(w, "  Program:  %s\n", v.ProgramID)
	fmt.Fprintf(w, "  Tier:     %s\n", v.Tier)
	fmt.Fprintf(w, "  Status:   %s\n", v.Status)
	fmt.Fprintf(w, "  Points:   %d\n", v.PointsBalance)
}

type notificationView struct {
	ID             string                  `json:"id"`
	CustomerID     string                  `json:"customer_id"`
	BusinessID     string                  `json:"business_id"`
	Kind           string                  `json:"kind"`
	Payload        model.InvitationPayload `json:"payload"`
	RequiresAction bool                    `json:"requires_action"`
	ActionTaken    bool                    `json:"action_taken"`
	IsRead         bool                    `json:"is_read"`
	CreatedAt      string                  `json:"created_at"`
}

func newNotificationView(n model.Notification) notificationView {
	return notificationView{
		ID:             n.ID,
		CustomerID:     string(n.CustomerID),
		BusinessID:     string(n.BusinessID),
		Kind:           n.Kind,
		Payload:        n.Payload,
		RequiresAction: n.RequiresAction,
		ActionTaken:    n.ActionTaken,
		IsRead:         n.IsRead,
		CreatedAt:      formatTime(n.CreatedAt),
	}
}

type notificationList struct {
	Notifications []notificationView `json:"notifications"`
}

func (l notificationList) writeText(w io.Writer) {
	if len(l.Notifications) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return
	}
	for _, n := range l.Notifications {
		state := "open"
		switch {
		case n.ActionTaken:
			state = "closed"
		case !n.RequiresAction:
			state = "info"
		}
		read := " "
		if !n.IsRead {
			read = "*"
		}
		fmt.Fprintf(w, "%s %s  %s invitation=%s program=%s [%s]\n",
			read, n.ID, n.Kind, n.Payload.InvitationID, n.Payload.ProgramID, state)
	}
}

type reportView struct {
	reconcile.Report
}

func (v reportView) writeText(w io.Writer) {
	fmt.Fprintf(w, "Reconcile: %d scanned, %d repaired\n", v.Scanned, v.Repaired)
	fmt.Fprintf(w, "  Cards repaired:         %d\n", v.CardsRepaired)
	fmt.Fprintf(w, "  Cards deactivated:      %d\n", v.CardsDeactivated)
	fmt.Fprintf(w, "  Notifications repaired: %d\n", v.NotificationsRepaired)
	for _, f := range v.Failures {
		fmt.Fprintf(w, "  ✗ %s %s: %s\n", f.Kind, f.Ref, f.Err)
	}
}

type messageView struct {
	Message string `json:"message"`
	Count   *int64 `json:"count,omitempty"`
}

func (v messageView) writeText(w io.Writer) {
	fmt.Fprintln(w, v.Message)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
