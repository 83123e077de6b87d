package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/chainledger/internal/core"
)

// GoldenDir holds trace snapshots, one <scenario>.golden per scenario.
const GoldenDir = "testdata/golden"

// Snapshot returns the canonical JSON form of a run, suitable for byte
// comparison.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"seq":    ev.Seq,
			"op":     ev.Op,
			"length": ev.Length,
		}
		if len(ev.IDs) > 0 {
			m["ids"] = anySlice(ev.IDs)
		}
		if len(ev.Hashes) > 0 {
			m["hashes"] = anySlice(ev.Hashes)
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		trace[i] = m
	}

	snap := map[string]any{
		"scenario": name,
		"trace":    trace,
	}
	if result.Tip != "" {
		snap["tip"] = result.Tip
	}
	return core.Canonicalize(snap)
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// RunWithGolden runs s and compares its snapshot with
// testdata/golden/<s.Name>.golden. Regenerate with -update.
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), s)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, s.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
