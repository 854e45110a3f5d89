package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario defines a loyalty scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup seeds rows before the flow runs. Setup steps must succeed and
	// are not traced.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow is the sequence of operations under test.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// ActionStep seeds state.
type ActionStep struct {
	// Op is one of the setup ops (enrollment, card, invitation).
	Op string `yaml:"op"`

	// As names the seeded invitation so flow steps can refer to it.
	As string `yaml:"as,omitempty"`

	// Args are the op arguments.
	Args map[string]any `yaml:"args"`
}

// FlowStep is one operation of the main flow.
type FlowStep struct {
	// Op is one of the flow ops.
	Op string `yaml:"op"`

	// As names the invitation created by an invite step.
	As string `yaml:"as,omitempty"`

	// Args are the op arguments.
	Args map[string]any `yaml:"args"`

	// Expect specifies the expected outcome. Nil means the step must
	// succeed, with no check on its result.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Case is "OK" or an error code such as INVITATION_EXPIRED.
	Case string `yaml:"case"`

	// Result is a subset of the step result to match.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is trace_contains, trace_order, trace_count or final_state.
	Type string `yaml:"type"`

	// Op is the operation (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Args are the expected op arguments (trace_contains, subset match).
	Args map[string]any `yaml:"args,omitempty"`

	// Table is the table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where filters rows (final_state). All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state, subset match).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected op order (trace_order).
	Ops []string `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// CaseOK is the case of a step that succeeded.
const CaseOK = "OK"

// Setup op names.
const (
	OpSeedEnrollment = "enrollment"
	OpSeedCard       = "card"
	OpSeedInvitation = "invitation"
)

// Flow op names.
const (
	OpInvite     = "invite"
	OpRespond    = "respond"
	OpLeave      = "leave"
	OpAdvance    = "advance"
	OpExpire     = "expire"
	OpReconcile  = "reconcile"
	OpSetPoints  = "set_points"
	OpDeleteCard = "delete_card"
)

var (
	setupOps = []string{OpSeedEnrollment, OpSeedCard, OpSeedInvitation}
	flowOps  = []string{OpInvite, OpRespond, OpLeave, OpAdvance, OpExpire, OpReconcile, OpSetPoints, OpDeleteCard}
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if !slices.Contains(setupOps, step.Op) {
			return fmt.Errorf("setup[%d]: unknown op %q (want one of %v)", i, step.Op, setupOps)
		}
		if step.Args == nil {
			return fmt.Errorf("setup[%d]: args is required", i)
		}
	}

	for i, step := range s.Flow {
		if !slices.Contains(flowOps, step.Op) {
			return fmt.Errorf("flow[%d]: unknown op %q (want one of %v)", i, step.Op, flowOps)
		}
		if step.As != "" && step.Op != OpInvite {
			return fmt.Errorf("flow[%d]: as is only valid on invite steps", i)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
