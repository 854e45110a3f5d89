package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Step: 0, Op: OpInvite, Args: map[string]any{"customer": 42, "program": 7}, Case: CaseOK},
		{Step: 1, Op: OpAdvance, Args: map[string]any{"by": "1h"}, Case: CaseOK},
		{Step: 2, Op: OpRespond, Args: map[string]any{"decision": "approve"}, Case: CaseOK},
		{Step: 3, Op: OpRespond, Args: map[string]any{"decision": "approve"}, Case: CaseOK},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	require.NoError(t, assertTraceContains(trace, Assertion{Op: OpInvite}))
	require.NoError(t, assertTraceContains(trace, Assertion{Op: OpInvite, Args: map[string]any{"customer": int64(42)}}))

	err := assertTraceContains(trace, Assertion{Op: OpInvite, Args: map[string]any{"customer": 43}})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceContains, aerr.Type)
	assert.Contains(t, err.Error(), "Full trace:")

	require.Error(t, assertTraceContains(trace, Assertion{Op: OpLeave}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	require.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpInvite, OpRespond}}))
	require.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpInvite, OpAdvance, OpRespond}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{OpRespond, OpInvite}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Ops: []string{OpInvite, OpReconcile}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing op: reconcile")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	require.NoError(t, assertTraceCount(trace, Assertion{Op: OpRespond, Count: 2}))
	require.NoError(t, assertTraceCount(trace, Assertion{Op: OpLeave, Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: OpRespond, Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertFinalState(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()
	key := model.Key{CustomerID: "42", ProgramID: "7"}
	testutil.SeedEnrollment(t, s, model.Enrollment{
		CustomerID: key.CustomerID, ProgramID: key.ProgramID, BusinessID: "3",
		Status: model.EnrollmentActive, CurrentPoints: 150,
		EnrolledAt: testutil.Epoch, LastActivityAt: testutil.Epoch,
	})
	testutil.SeedEnrollment(t, s, model.Enrollment{
		CustomerID: key.CustomerID, ProgramID: "8", BusinessID: "3",
		Status: model.EnrollmentInactive,
		EnrolledAt: testutil.Epoch, LastActivityAt: testutil.Epoch,
	})

	where := map[string]any{"customer_id": "42", "program_id": "7"}

	require.NoError(t, assertFinalState(ctx, s, Assertion{
		Table: "enrollments", Where: where,
		Expect: map[string]any{"status": "ACTIVE", "current_points": 150},
	}))

	err := assertFinalState(ctx, s, Assertion{
		Table: "enrollments", Where: where,
		Expect: map[string]any{"current_points": 151},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "current_points"`)

	err = assertFinalState(ctx, s, Assertion{
		Table: "enrollments", Where: where,
		Expect: map[string]any{"tier": "GOLD"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not present in result columns")

	err = assertFinalState(ctx, s, Assertion{
		Table: "enrollments", Where: map[string]any{"customer_id": "42"},
		Expect: map[string]any{"status": "ACTIVE"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple rows matched")

	err = assertFinalState(ctx, s, Assertion{
		Table: "enrollments", Where: map[string]any{"customer_id": "99"},
		Expect: map[string]any{"status": "ACTIVE"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row not found")
}

func TestAssertFinalState_RejectsUnsafeIdentifiers(t *testing.T) {
	s := testutil.OpenStore(t)
	ctx := context.Background()

	err := assertFinalState(ctx, s, Assertion{
		Table:  "enrollments; DROP TABLE enrollments",
		Expect: map[string]any{"status": "ACTIVE"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")

	err = assertFinalState(ctx, s, Assertion{
		Table:  "enrollments",
		Where:  map[string]any{"1=1 OR status": "x"},
		Expect: map[string]any{"status": "ACTIVE"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]any{"program_id": "7", "customer_id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "customer_id = ? AND program_id = ?", sql)
	assert.Equal(t, []any{"42", "7"}, args)

	sql, args, err = buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"string", "ACTIVE", "ACTIVE", true},
		{"string bytes", "ACTIVE", []byte("ACTIVE"), true},
		{"string mismatch", "ACTIVE", "INACTIVE", false},
		{"int vs int64", 150, int64(150), true},
		{"int mismatch", 150, int64(151), false},
		{"bool", true, true, true},
		{"bool from integer", true, int64(1), true},
		{"false from integer", false, int64(0), true},
		{"bool mismatch", true, int64(0), false},
		{"nil both", nil, nil, true},
		{"nil one", nil, "x", false},
		{"type mismatch", 1, "1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Trace: sampleTrace()}

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Op: OpRespond, Count: 2},
		{Type: AssertTraceCount, Op: OpRespond, Count: 5},
		{Type: AssertFinalState, Table: "enrollments", Expect: map[string]any{"status": "ACTIVE"}},
		{Type: "eventually"},
	}, nil)

	require.Len(t, failures, 3)
	assert.Contains(t, failures[1], "final_state requires database context")
	assert.Contains(t, failures[2], `unknown assertion type "eventually"`)
}
