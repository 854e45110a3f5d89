package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
)

// Leave cancels a customer's enrollment and deactivates the card in one
// transaction. Points are kept, so a later approval reactivates the same
// balance. Leaving twice is a no-op.
func (e *Engine) Leave(ctx context.Context, key model.Key) error {
	ctx, span := e.tracer.Start(ctx, "engine.Leave")
	defer span.End()

	if _, err := e.EnrollmentStatus(ctx, key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	now := e.clock.Now()
	var enrollmentChanged, cardChanged bool
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		enrollmentChanged, err = tx.SetEnrollmentStatus(ctx, key, model.EnrollmentCancelled, now)
		if err != nil {
			return fmt.Errorf("leave %s: %w", key, err)
		}
		cardChanged, err = tx.DeactivateCard(ctx, key, now)
		if err != nil {
			return fmt.Errorf("leave %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	e.logger.InfoContext(ctx, "enrollment cancelled",
		"customer_id", key.CustomerID,
		"program_id", key.ProgramID,
		"enrollment_changed", enrollmentChanged,
		"card_changed", cardChanged,
	)
	return nil
}
