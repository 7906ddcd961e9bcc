package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cbind/internal/ir"
)

// DefaultGoldenDir is where golden files live unless a caller says
// otherwise.
const DefaultGoldenDir = "testdata/golden"

// Snapshot renders the deterministic part of a result as canonical JSON:
// the scenario name, the call trace, the written tree and its fingerprint.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.List, len(result.Trace))
	for i, s := range result.Trace {
		trace[i] = ir.Object{
			"op":      ir.String(s.Op),
			"seq":     ir.Int(s.Seq),
			"outcome": ir.String(s.Outcome),
		}
	}
	tree := make(ir.List, len(result.Tree))
	for i, line := range result.Tree {
		tree[i] = ir.String(line)
	}

	obj := ir.Object{
		"scenario_name": ir.String(name),
		"trace":         trace,
		"tree":          tree,
	}
	if result.Snapshot.Fingerprint != "" {
		obj["fingerprint"] = ir.String(result.Snapshot.Fingerprint)
	}
	if len(result.Intents) > 0 {
		intents := ir.Object{}
		for kind, n := range result.Intents {
			intents[kind] = ir.Int(n)
		}
		obj["intents"] = intents
	}
	return ir.MarshalCanonical(obj)
}

// RunWithGolden runs a scenario and compares its snapshot against
// <dir>/<scenario name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, dir string, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, dir, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against <dir>/<name>.golden.
func AssertGolden(t *testing.T, dir, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
