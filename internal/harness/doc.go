// Package harness runs loyalty scenarios against a real engine.
//
// A scenario seeds enrollments and cards, drives invitations through the
// invitation manager, the approval engine and the reconciliation sweep, and
// then asserts on the recorded trace and on the final database rows.
//
// # Scenario Format
//
//	name: reactivation
//	description: "A returning customer keeps their points"
//	setup:
//	  - op: enrollment
//	    args: { customer: 42, program: 7, business: 3, status: INACTIVE, points: 150 }
//	flow:
//	  - op: invite
//	    as: first
//	    args: { customer: 42, business: 3, program: 7 }
//	  - op: respond
//	    args: { invitation: first, decision: approve }
//	    expect:
//	      case: OK
//	      result: { status: APPROVED, points_balance: 150 }
//	assertions:
//	  - type: final_state
//	    table: enrollments
//	    where: { customer_id: "42", program_id: "7" }
//	    expect: { status: ACTIVE, current_points: 150 }
//
// # Operations
//
// Setup ops: enrollment, card, invitation.
// Flow ops: invite, respond, leave, advance, expire, reconcile, set_points,
// delete_card.
//
// Each step completes with case "OK" or the error code of the failure
// (e.g. INVITATION_EXPIRED). Steps without an expect clause must succeed.
//
// # Assertion Types
//
//   - trace_contains: a step with the op and matching args exists
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - final_state: exactly one row matches where and has the expected columns
//
// # Deterministic Execution
//
// Every scenario runs against a fresh in-memory SQLite database with a
// controllable clock starting at testutil.Epoch, sequential UUIDs and
// sequential card numbers, so traces are byte-identical across runs and can
// be pinned with golden files.
package harness
