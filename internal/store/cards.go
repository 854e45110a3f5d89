package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

const cardColumns = `id, customer_id, program_id, business_id, card_number, points_balance, tier, status, created_at, updated_at`

// GetCard retrieves the reward card for a customer and program.
// Returns sql.ErrNoRows if not found.
func (q queries) GetCard(ctx context.Context, key model.Key) (model.RewardCard, error) {
	row := q.queryRow(ctx, `
		SELECT `+cardColumns+`
		FROM reward_cards
		WHERE customer_id = ? AND program_id = ?
	`, string(key.CustomerID), string(key.ProgramID))

	return scanCard(row)
}

// ActivateCard creates an ACTIVE card, or reactivates and resyncs the
// existing card for the same customer and program.
//
// Uses INSERT ... ON CONFLICT(customer_id, program_id) DO UPDATE. On conflict
// only status, points_balance and updated_at change; the existing id, number,
// tier and created_at are kept. A card that is already ACTIVE with the given
// balance is left untouched (changed=false).
func (q queries) ActivateCard(ctx context.Context, c model.RewardCard) (changed bool, err error) {
	changed, err = q.execAffected(ctx, `
		INSERT INTO reward_cards
		(`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'ACTIVE', ?, ?)
		ON CONFLICT(customer_id, program_id) DO UPDATE
		SET status = 'ACTIVE', points_balance = excluded.points_balance, updated_at = excluded.updated_at
		WHERE reward_cards.status <> 'ACTIVE' OR reward_cards.points_balance <> excluded.points_balance
	`,
		c.ID,
		string(c.CustomerID),
		string(c.ProgramID),
		string(c.BusinessID),
		c.CardNumber,
		c.PointsBalance,
		c.Tier,
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("activate card: %w", err)
	}
	return changed, nil
}

// DeactivateCard sets an ACTIVE card to INACTIVE.
// Returns changed=false if there is no ACTIVE card for the key.
func (q queries) DeactivateCard(ctx context.Context, key model.Key, at time.Time) (changed bool, err error) {
	changed, err = q.execAffected(ctx, `
		UPDATE reward_cards
		SET status = 'INACTIVE', updated_at = ?
		WHERE customer_id = ? AND program_id = ? AND status = 'ACTIVE'
	`, toMillis(at), string(key.CustomerID), string(key.ProgramID))
	if err != nil {
		return false, fmt.Errorf("deactivate card: %w", err)
	}
	return changed, nil
}

// ListOrphanCards returns ACTIVE cards whose enrollment is missing or not
// ACTIVE. Results are ordered by customer and program.
func (q queries) ListOrphanCards(ctx context.Context) ([]model.RewardCard, error) {
	rows, err := q.query(ctx, `
		SELECT c.id, c.customer_id, c.program_id, c.business_id, c.card_number,
		       c.points_balance, c.tier, c.status, c.created_at, c.updated_at
		FROM reward_cards c
		LEFT JOIN enrollments e
		       ON e.customer_id = c.customer_id AND e.program_id = c.program_id
		WHERE c.status = 'ACTIVE'
		  AND (e.customer_id IS NULL OR e.status <> 'ACTIVE')
		ORDER BY c.customer_id ASC, c.program_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query orphan cards: %w", err)
	}
	defer rows.Close()

	cards := []model.RewardCard{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orphan cards: %w", err)
	}
	return cards, nil
}

func scanCard(row rowScanner) (model.RewardCard, error) {
	var (
		c                           model.RewardCard
		customer, program, business string
		status                      string
		createdAt, updatedAt        int64
	)
	if err := row.Scan(&c.ID, &customer, &program, &business, &c.CardNumber,
		&c.PointsBalance, &c.Tier, &status, &createdAt, &updatedAt); err != nil {
		return model.RewardCard{}, err
	}

	c.CustomerID = ident.CustomerID(customer)
	c.ProgramID = ident.ProgramID(program)
	c.BusinessID = ident.BusinessID(business)
	c.Status = model.CardStatus(status)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}
