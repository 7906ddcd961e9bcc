package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/mapping"
	"github.com/roach88/cbind/internal/rules"
	"github.com/roach88/cbind/internal/session"
	"github.com/roach88/cbind/internal/store"
)

// Harness runs scenarios. Every run gets a fresh session, clock and
// output directory, so the same scenario always yields the same trace.
type Harness struct {
	logger  *slog.Logger
	workDir string
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger routes session logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithWorkDir runs scenarios under dir instead of a fresh temp dir. Each
// scenario gets its own subdirectory.
func WithWorkDir(dir string) Option {
	return func(h *Harness) { h.workDir = dir }
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New().Run(ctx, scenario)
}

// Run executes a scenario and evaluates its assertions.
//
// Execution flow:
//  1. Write inline headers into the work directory
//  2. Index, filter and resolve the headers in a new session
//  3. Register the scenario's rules
//  4. Write the bindings and open the snapshot
//  5. Evaluate assertions against the snapshot
//
// The returned error is reserved for harness failures (unreadable rules,
// I/O). A session error is recorded in the result and fails it unless it
// matches ExpectError.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, cleanup, err := h.scenarioDir(scenario.Name)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	headers, err := writeHeaders(filepath.Join(dir, "include"), scenario.Headers)
	if err != nil {
		return nil, err
	}
	headers = append(headers, scenario.HeaderFiles...)

	pred := filter.Predicate(filter.IsKind(filter.KindClass))
	if scenario.Filter != "" {
		if pred, err = rules.ParseFilter(scenario.Filter); err != nil {
			return nil, fmt.Errorf("scenario filter: %w", err)
		}
	}
	mappers, err := scenario.mappers()
	if err != nil {
		return nil, err
	}

	cfg := scenario.config()
	sess := session.New(
		session.WithConfig(cfg),
		session.WithHandles(session.NewFixedGenerator(scenario.Name)),
		session.WithClock(session.NewClock()),
		session.WithLogger(h.logger),
	)
	defer sess.Close()

	result := NewResult()
	out := filepath.Join(dir, "out")
	wr, runErr := h.execute(ctx, sess, result, session.IndexRequest{Headers: headers, Libraries: scenario.Libraries}, pred, mappers, out)

	if !expectedError(result, scenario.ExpectError, runErr) || runErr != nil {
		return result, nil
	}

	if wr.Mapping != nil {
		for kind, n := range wr.Mapping.Intents {
			result.Intents[kind] = n
		}
	}
	result.Snapshot = wr.Snapshot

	st, err := store.OpenExisting(filepath.Join(out, cfg.Module+".db"))
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	defer st.Close()

	rows, err := st.Elements(ctx, wr.Snapshot.ID)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	result.Tree = tree(rows)

	actx := &AssertionContext{Ctx: ctx, Store: st, Snapshot: wr.Snapshot.ID}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// execute drives the session through the protocol, tracing each call. It
// stops at the first failing call.
func (h *Harness) execute(ctx context.Context, sess *session.Session, result *Result, req session.IndexRequest, pred filter.Predicate, mappers []mapping.Mapper, out string) (*session.WriteResult, error) {
	step := func(op string, err error) error {
		result.addStep(op, sess.Clock().Current(), outcome(err))
		return err
	}

	if err := step("index", sess.Index(ctx, req)); err != nil {
		return nil, err
	}
	_, err := sess.FilterAndResolve(ctx, pred)
	if err := step("filter_and_resolve", err); err != nil {
		return nil, err
	}
	for _, m := range mappers {
		if err := step("add_mapping", sess.AddMapping(ctx, m)); err != nil {
			return nil, err
		}
	}
	wr, err := sess.WriteTo(ctx, out)
	if err := step("write_to", err); err != nil {
		return nil, err
	}
	return wr, nil
}

// expectedError checks runErr against the expected error code and records
// a mismatch. It reports whether the run may continue to assertions.
func expectedError(result *Result, want string, runErr error) bool {
	got := ""
	if runErr != nil {
		got = outcome(runErr)
	}
	switch {
	case want == "" && runErr != nil:
		result.AddError(fmt.Sprintf("unexpected error: %v", runErr))
		return false
	case want != "" && runErr == nil:
		result.AddError(fmt.Sprintf("expected error %s, run succeeded", want))
		return false
	case want != got:
		result.AddError(fmt.Sprintf("expected error %s, got %s: %v", want, got, runErr))
		return false
	}
	return true
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var se *session.Error
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return string(session.CodeInternal)
}

func (s *Scenario) mappers() ([]mapping.Mapper, error) {
	var mappers []mapping.Mapper
	if s.Rules != "" {
		rs, errs := rules.CompileString(s.Name+".cue", s.Rules)
		if len(errs) > 0 {
			return nil, fmt.Errorf("scenario rules: %w", errors.Join(errs...))
		}
		mappers = append(mappers, (&rules.Set{Rules: rs}).Mappers()...)
	}
	if len(s.RuleFiles) > 0 {
		set, errs := rules.Load(s.RuleFiles)
		if len(errs) > 0 {
			return nil, fmt.Errorf("scenario rule files: %w", errors.Join(errs...))
		}
		mappers = append(mappers, set.Mappers()...)
	}
	return mappers, nil
}

func (h *Harness) scenarioDir(name string) (string, func(), error) {
	if h.workDir != "" {
		dir := filepath.Join(h.workDir, name)
		if err := os.RemoveAll(dir); err != nil {
			return "", nil, fmt.Errorf("reset work dir: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create work dir: %w", err)
		}
		return dir, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "cbind-scenario-*")
	if err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func writeHeaders(dir string, headers map[string]string) ([]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create include dir: %w", err)
	}
	paths := make([]string, 0, len(headers))
	for _, name := range slices.Sorted(maps.Keys(headers)) {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create include dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(headers[name]), 0o644); err != nil {
			return nil, fmt.Errorf("write header %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// tree renders rows one per line, indented two spaces per level.
func tree(rows []store.Row) []string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.Repeat("  ", r.Depth) + r.Description
	}
	return lines
}
