package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/chainledger/internal/engine"
)

// Assertion type constants.
const (
	AssertLength       = "length"
	AssertRecordExists = "record_exists"
	AssertRecordAbsent = "record_absent"
	AssertQueryCount   = "query_count"
	AssertChainValid   = "chain_valid"
	AssertAccess       = "access"
	AssertTip          = "tip"
)

// Assertion checks the final ledger state.
type Assertion struct {
	Type string `yaml:"type"`

	// ID is used by record_exists, record_absent and tip.
	ID string `yaml:"id,omitempty"`

	// Stream and Filters narrow query_count.
	Stream  string         `yaml:"stream,omitempty"`
	Filters map[string]any `yaml:"filters,omitempty"`

	// Count is required by length and query_count.
	Count *int `yaml:"count,omitempty"`

	// Subject, Resource, Action and Allowed are used by access.
	Subject  string `yaml:"subject,omitempty"`
	Resource string `yaml:"resource,omitempty"`
	Action   string `yaml:"action,omitempty"`
	Allowed  *bool  `yaml:"allowed,omitempty"`
}

// AssertionError describes one failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertLength:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("count must be set and non-negative for length")
		}
	case AssertQueryCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("count must be set and non-negative for query_count")
		}
	case AssertRecordExists, AssertRecordAbsent, AssertTip:
		if a.ID == "" {
			return fmt.Errorf("id is required for %s", a.Type)
		}
	case AssertAccess:
		if a.Subject == "" || a.Resource == "" || a.Action == "" || a.Allowed == nil {
			return fmt.Errorf("subject, resource, action and allowed are required for access")
		}
	case AssertChainValid:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// EvaluateAssertions checks every assertion against e and returns one
// message per failure.
func EvaluateAssertions(ctx context.Context, e *engine.Engine, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(ctx, e, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(ctx context.Context, e *engine.Engine, a Assertion) error {
	switch a.Type {
	case AssertLength:
		if got := e.Len(); got != *a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d entries", *a.Count), Actual: fmt.Sprintf("%d entries", got)}
		}

	case AssertRecordExists:
		if _, ok := e.GetRecordByID(a.ID); !ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("record %q", a.ID), Actual: "not found"}
		}

	case AssertRecordAbsent:
		if _, ok := e.GetRecordByID(a.ID); ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no record %q", a.ID), Actual: "found"}
		}

	case AssertQueryCount:
		res := e.Query(engine.QueryFilters{Stream: a.Stream, ModuleFilters: a.Filters})
		if res.Total != *a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d matches", *a.Count), Actual: fmt.Sprintf("%d matches", res.Total)}
		}

	case AssertChainValid:
		if err := e.Verify(); err != nil {
			return &AssertionError{Type: a.Type, Expected: "valid chain", Actual: err.Error()}
		}

	case AssertAccess:
		ok, err := e.CheckAccess(ctx, a.Subject, a.Resource, a.Action)
		if err != nil {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("allowed=%t", *a.Allowed), Actual: err.Error()}
		}
		if ok != *a.Allowed {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("allowed=%t", *a.Allowed), Actual: fmt.Sprintf("allowed=%t", ok)}
		}

	case AssertTip:
		tip := e.LatestHash()
		if tip == nil {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("record %q", a.ID), Actual: "empty ledger"}
		}
		if rec, _ := e.GetRecord(*tip); rec.ID != a.ID {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("record %q", a.ID), Actual: fmt.Sprintf("record %q", rec.ID)}
		}
	}
	return nil
}
