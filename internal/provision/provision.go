package provision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
)

// Tx is the transactional storage Apply and Repair need. *store.Tx implements it.
type Tx interface {
	GetEnrollment(ctx context.Context, key model.Key) (model.Enrollment, error)
	ActivateEnrollment(ctx context.Context, e model.Enrollment) (bool, error)
	GetCard(ctx context.Context, key model.Key) (model.RewardCard, error)
	ActivateCard(ctx context.Context, c model.RewardCard) (bool, error)
}

// ErrEnrollmentInactive is returned by Repair when there is no ACTIVE
// enrollment to repair a card for.
var ErrEnrollmentInactive = errors.New("enrollment is not active")

// Outcome is the post-provisioning state of one (customer, program) pair.
type Outcome struct {
	Decision   Decision
	Enrollment model.Enrollment
	Card       model.RewardCard
}

// Wrote reports whether Apply changed any row.
func (o Outcome) Wrote() bool {
	return !o.Decision.Noop()
}

// Provisioner applies provisioning plans inside a caller-owned transaction.
//
// Thread-safety: a Provisioner holds no per-call state and is safe for
// concurrent use as long as its generators are.
type Provisioner struct {
	ids     ident.Generator
	numbers CardNumberer
	tier    string
	logger  *slog.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithTier sets the tier assigned to newly created cards.
func WithTier(tier string) Option {
	return func(p *Provisioner) {
		if tier != "" {
			p.tier = tier
		}
	}
}

// WithLogger sets the logger for provisioning decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Provisioner that draws card ids from ids and display numbers
// from numbers.
func New(ids ident.Generator, numbers CardNumberer, opts ...Option) *Provisioner {
	p := &Provisioner{
		ids:     ids,
		numbers: numbers,
		tier:    model.DefaultTier,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply makes the enrollment and card for key ACTIVE and in balance.
//
// It must run inside the caller's transaction: it reads both rows, plans,
// and issues only the upserts the plan calls for. A pair that is already
// consistent costs two reads and zero writes. Because each write is an
// ON CONFLICT upsert, a concurrent Apply for the same key cannot create a
// second row; the loser's upsert degrades to an update or a no-op.
func (p *Provisioner) Apply(ctx context.Context, tx Tx, key model.Key, businessID ident.BusinessID, now time.Time) (Outcome, error) {
	return p.apply(ctx, tx, key, businessID, now, false)
}

// Repair brings the card of an ACTIVE enrollment back in line with it.
// Unlike Apply it never creates or reactivates an enrollment: when the
// enrollment read inside tx is missing or not ACTIVE it writes nothing and
// returns ErrEnrollmentInactive.
func (p *Provisioner) Repair(ctx context.Context, tx Tx, key model.Key, businessID ident.BusinessID, now time.Time) (Outcome, error) {
	return p.apply(ctx, tx, key, businessID, now, true)
}

func (p *Provisioner) apply(ctx context.Context, tx Tx, key model.Key, businessID ident.BusinessID, now time.Time, repairOnly bool) (Outcome, error) {
	enrollment, err := lookupEnrollment(ctx, tx, key)
	if err != nil {
		return Outcome{}, err
	}
	if repairOnly && (enrollment == nil || enrollment.Status != model.EnrollmentActive) {
		return Outcome{}, fmt.Errorf("repair %s: %w", key, ErrEnrollmentInactive)
	}
	card, err := lookupCard(ctx, tx, key)
	if err != nil {
		return Outcome{}, err
	}

	decision := Plan(enrollment, card)

	if decision.Enrollment.Writes() {
		if _, err := tx.ActivateEnrollment(ctx, model.Enrollment{
			CustomerID:     key.CustomerID,
			ProgramID:      key.ProgramID,
			BusinessID:     businessID,
			CurrentPoints:  0,
			EnrolledAt:     now,
			LastActivityAt: now,
		}); err != nil {
			return Outcome{}, fmt.Errorf("provision %s: %w", key, err)
		}
		if enrollment, err = lookupEnrollment(ctx, tx, key); err != nil {
			return Outcome{}, err
		}
		if enrollment == nil {
			return Outcome{}, fmt.Errorf("provision %s: enrollment missing after upsert", key)
		}
		// The card must mirror the balance actually stored, not the snapshot.
		decision.Card = Plan(enrollment, card).Card
		decision.Points = enrollment.CurrentPoints
	}

	if decision.Card.Writes() {
		if _, err := tx.ActivateCard(ctx, model.RewardCard{
			ID:            p.ids.NewID(),
			CustomerID:    key.CustomerID,
			ProgramID:     key.ProgramID,
			BusinessID:    businessID,
			CardNumber:    p.numbers.Next(),
			PointsBalance: decision.Points,
			Tier:          p.tier,
			CreatedAt:     now,
			UpdatedAt:     now,
		}); err != nil {
			return Outcome{}, fmt.Errorf("provision %s: %w", key, err)
		}
		if card, err = lookupCard(ctx, tx, key); err != nil {
			return Outcome{}, err
		}
		if card == nil {
			return Outcome{}, fmt.Errorf("provision %s: card missing after upsert", key)
		}
	}

	p.logger.DebugContext(ctx, "provisioned",
		"customer_id", key.CustomerID,
		"program_id", key.ProgramID,
		"enrollment", decision.Enrollment,
		"card", decision.Card,
		"points", decision.Points,
	)

	return Outcome{Decision: decision, Enrollment: *enrollment, Card: *card}, nil
}

func lookupEnrollment(ctx context.Context, tx Tx, key model.Key) (*model.Enrollment, error) {
	e, err := tx.GetEnrollment(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("provision %s: read enrollment: %w", key, err)
	}
	return &e, nil
}

func lookupCard(ctx context.Context, tx Tx, key model.Key) (*model.RewardCard, error) {
	c, err := tx.GetCard(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("provision %s: read card: %w", key, err)
	}
	return &c, nil
}
