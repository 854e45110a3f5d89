package engine

import (
	"fmt"
	"time"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/errs"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

func invitationNotFound(id ident.InvitationID) error {
	return errs.WithMetadata(errs.CodeInvitationNotFound,
		fmt.Sprintf("invitation %s not found", id),
		map[string]string{"invitation_id": string(id)},
	)
}

func invitationExpired(inv model.Invitation) error {
	return errs.WithMetadata(errs.CodeInvitationExpired,
		fmt.Sprintf("invitation %s expired at %s", inv.ID, inv.ExpiresAt.Format(time.RFC3339)),
		map[string]string{"invitation_id": string(inv.ID)},
	)
}

func enrollmentDrift(inv model.Invitation) error {
	return errs.WithMetadata(errs.CodeEnrollmentDrift,
		fmt.Sprintf("invitation %s is approved but %s has no reward card; run reconcile", inv.ID, inv.Key()),
		map[string]string{
			"invitation_id": string(inv.ID),
			"customer_id":   string(inv.CustomerID),
			"program_id":    string(inv.ProgramID),
		},
	)
}

func notFound(what string, key model.Key) error {
	return errs.WithMetadata(errs.CodeNotFound,
		fmt.Sprintf("%s not found for customer %s in program %s", what, key.CustomerID, key.ProgramID),
		map[string]string{
			"customer_id": string(key.CustomerID),
			"program_id":  string(key.ProgramID),
		},
	)
}
