package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/cbind/internal/rules"
	"github.com/roach88/cbind/internal/store"
)

// AssertionContext is what assertions evaluate against.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	Snapshot string
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []Step
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, s := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", s.Seq, s.Op, s.Outcome)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. A failing assertion does not stop the rest.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertCount, AssertExists, AssertAbsent:
		return assertSelect(result, a, actx)
	case AssertContains:
		return assertContains(result, a)
	case AssertIntents:
		return assertIntents(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertSelect runs the assertion's filter against the snapshot in SQL.
func assertSelect(result *Result, a Assertion, actx *AssertionContext) error {
	pred, err := rules.ParseFilter(a.Filter)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	matches, err := actx.Store.Select(actx.Ctx, actx.Snapshot, pred)
	if err != nil {
		return err
	}

	var ok bool
	var want string
	switch a.Type {
	case AssertCount:
		ok, want = len(matches) == a.Count, fmt.Sprintf("%d matches", a.Count)
	case AssertExists:
		ok, want = len(matches) > 0, "at least one match"
	case AssertAbsent:
		ok, want = len(matches) == 0, "no matches"
	}
	if ok {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s for %s", want, a.Filter),
		Actual:   fmt.Sprintf("%d matches %v", len(matches), describeMatches(matches)),
		Trace:    result.Trace,
	}
}

func assertContains(result *Result, a Assertion) error {
	if slices.ContainsFunc(result.Tree, func(line string) bool {
		return strings.TrimSpace(line) == a.Description
	}) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: a.Description,
		Actual:   fmt.Sprintf("tree of %d elements", len(result.Tree)),
		Trace:    result.Trace,
	}
}

func assertIntents(result *Result, a Assertion) error {
	if got := result.Intents[a.Intent]; got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s intents", a.Count, a.Intent),
			Actual:   fmt.Sprintf("%d", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func describeMatches(matches []store.Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Description
	}
	return out
}
