package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/engine"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/errs"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/invite"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/provision"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/reconcile"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/testutil"
)

// Harness executes one scenario against a private store.
type Harness struct {
	store       *store.Store
	clock       *testutil.Clock
	invites     *invite.Manager
	engine      *engine.Engine
	sweep       *reconcile.Sweep
	invitations map[string]ident.InvitationID
	logger      *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Create fresh in-memory database and deterministic collaborators
//  2. Execute setup steps (each must succeed)
//  3. Execute flow steps, checking expect clauses
//  4. Evaluate assertions
//
// An error is returned only for infrastructure failures; expectation and
// assertion failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := newHarness(st)
	ctx := context.Background()
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(st *store.Store) *Harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewClock()
	ids := &sequentialUUIDs{}

	p := provision.New(ids, testutil.NewSequentialNumberer(), provision.WithLogger(logger))

	return &Harness{
		store: st,
		clock: clock,
		invites: invite.New(st,
			invite.WithClock(clock),
			invite.WithIDs(ids),
			invite.WithLogger(logger),
		),
		engine: engine.New(st, p,
			engine.WithClock(clock),
			engine.WithLogger(logger),
		),
		sweep: reconcile.New(st, p,
			reconcile.WithClock(clock),
			reconcile.WithLogger(logger),
		),
		invitations: make(map[string]ident.InvitationID),
		logger:      logger,
	}
}

// executeSetup runs all setup steps. Setup steps are not traced.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep) error {
	for i, step := range setup {
		var err error
		switch step.Op {
		case OpSeedEnrollment:
			err = h.seedEnrollment(ctx, step.Args)
		case OpSeedCard:
			err = h.seedCard(ctx, step.Args)
		case OpSeedInvitation:
			_, err = h.invite(ctx, step.As, step.Args)
		default:
			err = fmt.Errorf("unknown op %q", step.Op)
		}
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		out, err := h.execute(ctx, step)

		outcome := CaseOK
		if err != nil {
			if !errs.IsDomain(err) {
				return fmt.Errorf("flow step %d (%s): %w", i, step.Op, err)
			}
			outcome = string(errs.CodeOf(err))
			out = nil
		}

		result.AddTrace(TraceEvent{
			Step:   i,
			Op:     step.Op,
			Args:   step.Args,
			Case:   outcome,
			Result: out,
			At:     h.clock.Now().Format(time.RFC3339),
		})

		h.logger.Info("flow step completed", "step", i, "op", step.Op, "case", outcome)

		expected := CaseOK
		if step.Expect != nil {
			expected = step.Expect.Case
		}
		if outcome != expected {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Op, expected, outcome))
			continue
		}
		if step.Expect != nil && !matchArgs(out, step.Expect.Result) {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v", i, step.Op, step.Expect.Result, out))
		}
	}
	return nil
}

func (h *Harness) execute(ctx context.Context, step FlowStep) (map[string]any, error) {
	switch step.Op {
	case OpInvite:
		return h.invite(ctx, step.As, step.Args)
	case OpRespond:
		return h.respond(ctx, step.Args)
	case OpLeave:
		return h.leave(ctx, step.Args)
	case OpAdvance:
		return h.advance(step.Args)
	case OpExpire:
		n, err := h.invites.ExpireStale(ctx, h.clock.Now())
		if err != nil {
			return nil, err
		}
		return map[string]any{"expired": n}, nil
	case OpReconcile:
		report, err := h.sweep.Run(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"scanned":                report.Scanned,
			"repaired":               report.Repaired,
			"cards_repaired":         report.CardsRepaired,
			"cards_deactivated":      report.CardsDeactivated,
			"notifications_repaired": report.NotificationsRepaired,
			"failures":               len(report.Failures),
		}, nil
	case OpSetPoints:
		return h.setPoints(ctx, step.Args)
	case OpDeleteCard:
		return h.deleteCard(ctx, step.Args)
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

func (h *Harness) invite(ctx context.Context, alias string, args map[string]any) (map[string]any, error) {
	customer, err := ident.ParseCustomerID(args["customer"])
	if err != nil {
		return nil, err
	}
	business, err := ident.ParseBusinessID(args["business"])
	if err != nil {
		return nil, err
	}
	program, err := ident.ParseProgramID(args["program"])
	if err != nil {
		return nil, err
	}

	inv, err := h.invites.Create(ctx, customer, business, program)
	if err != nil {
		return nil, err
	}
	if alias != "" {
		h.invitations[alias] = inv.ID
	}
	return map[string]any{
		"invitation_id": string(inv.ID),
		"status":        string(inv.Status),
		"expires_at":    inv.ExpiresAt.Format(time.RFC3339),
	}, nil
}

func (h *Harness) respond(ctx context.Context, args map[string]any) (map[string]any, error) {
	ref, err := stringArg(args, "invitation")
	if err != nil {
		return nil, err
	}
	id, ok := h.invitations[ref]
	if !ok {
		if id, err = ident.ParseInvitationID(ref); err != nil {
			return nil, err
		}
	}

	raw, err := stringArg(args, "decision")
	if err != nil {
		return nil, err
	}
	decision, err := model.ParseDecision(raw)
	if err != nil {
		return nil, err
	}

	res, err := h.engine.Respond(ctx, id, decision)
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		"status":   string(res.Status),
		"replayed": res.Replayed,
	}
	if res.CardID != "" {
		out["card_id"] = res.CardID
		out["card_number"] = res.CardNumber
	}
	if res.PointsBalance != nil {
		out["points_balance"] = *res.PointsBalance
	}
	return out, nil
}

func (h *Harness) leave(ctx context.Context, args map[string]any) (map[string]any, error) {
	key, err := keyArgs(args)
	if err != nil {
		return nil, err
	}
	if err := h.engine.Leave(ctx, key); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (h *Harness) advance(args map[string]any) (map[string]any, error) {
	raw, err := stringArg(args, "by")
	if err != nil {
		return nil, err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("advance: %w", err)
	}
	now := h.clock.Advance(d)
	return map[string]any{"now": now.Format(time.RFC3339)}, nil
}

// setPoints overwrites balances directly, standing in for the points ledger.
// target selects "enrollment", "card" or "both" (default).
func (h *Harness) setPoints(ctx context.Context, args map[string]any) (map[string]any, error) {
	key, err := keyArgs(args)
	if err != nil {
		return nil, err
	}
	points, err := intArg(args, "points", 0)
	if err != nil {
		return nil, err
	}
	target := "both"
	if _, ok := args["target"]; ok {
		if target, err = stringArg(args, "target"); err != nil {
			return nil, err
		}
	}

	if target == "enrollment" || target == "both" {
		if err := h.exec(ctx, `UPDATE enrollments SET current_points = ? WHERE customer_id = ? AND program_id = ?`,
			points, string(key.CustomerID), string(key.ProgramID)); err != nil {
			return nil, err
		}
	}
	if target == "card" || target == "both" {
		if err := h.exec(ctx, `UPDATE reward_cards SET points_balance = ? WHERE customer_id = ? AND program_id = ?`,
			points, string(key.CustomerID), string(key.ProgramID)); err != nil {
			return nil, err
		}
	}
	return map[string]any{}, nil
}

// deleteCard removes a card row, simulating a lost write.
func (h *Harness) deleteCard(ctx context.Context, args map[string]any) (map[string]any, error) {
	key, err := keyArgs(args)
	if err != nil {
		return nil, err
	}
	if err := h.exec(ctx, `DELETE FROM reward_cards WHERE customer_id = ? AND program_id = ?`,
		string(key.CustomerID), string(key.ProgramID)); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (h *Harness) seedEnrollment(ctx context.Context, args map[string]any) error {
	key, err := keyArgs(args)
	if err != nil {
		return err
	}
	business, err := ident.ParseBusinessID(args["business"])
	if err != nil {
		return err
	}
	points, err := intArg(args, "points", 0)
	if err != nil {
		return err
	}
	status := string(model.EnrollmentActive)
	if _, ok := args["status"]; ok {
		if status, err = stringArg(args, "status"); err != nil {
			return err
		}
	}

	now := h.clock.Now().UnixMilli()
	return h.exec(ctx, `
		INSERT INTO enrollments
		(customer_id, program_id, business_id, status, current_points, enrolled_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(key.CustomerID), string(key.ProgramID), string(business), status, points, now, now)
}

func (h *Harness) seedCard(ctx context.Context, args map[string]any) error {
	key, err := keyArgs(args)
	if err != nil {
		return err
	}
	business, err := ident.ParseBusinessID(args["business"])
	if err != nil {
		return err
	}
	id, err := stringArg(args, "id")
	if err != nil {
		return err
	}
	points, err := intArg(args, "points", 0)
	if err != nil {
		return err
	}

	fields := map[string]string{
		"number": "SEED-" + id,
		"tier":   model.DefaultTier,
		"status": string(model.CardActive),
	}
	for name := range fields {
		if _, ok := args[name]; ok {
			if fields[name], err = stringArg(args, name); err != nil {
				return err
			}
		}
	}

	now := h.clock.Now().UnixMilli()
	return h.exec(ctx, `
		INSERT INTO reward_cards
		(id, customer_id, program_id, business_id, card_number, points_balance, tier, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, string(key.CustomerID), string(key.ProgramID), string(business),
		fields["number"], points, fields["tier"], fields["status"], now, now)
}

func (h *Harness) exec(ctx context.Context, query string, args ...any) error {
	if _, err := h.store.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func keyArgs(args map[string]any) (model.Key, error) {
	customer, err := ident.ParseCustomerID(args["customer"])
	if err != nil {
		return model.Key{}, err
	}
	program, err := ident.ParseProgramID(args["program"])
	if err != nil {
		return model.Key{}, err
	}
	return model.Key{CustomerID: customer, ProgramID: program}, nil
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing arg %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("arg %q must be a string, got %T", name, v)
	}
	return s, nil
}

func intArg(args map[string]any, name string, def int64) (int64, error) {
	v, ok := args[name]
	if !ok {
		return def, nil
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, fmt.Errorf("arg %q must be an integer, got %T", name, v)
	}
	return n, nil
}

// sequentialUUIDs issues UUIDv7-shaped ids with a counter in the node field,
// so traces are identical across runs.
type sequentialUUIDs struct {
	mu sync.Mutex
	n  int
}

func (g *sequentialUUIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", g.n)
}
