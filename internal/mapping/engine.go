package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/ir"
)

// ErrorPolicy decides what a failed invocation does to the rest of Apply.
type ErrorPolicy string

const (
	// FailFast stops Apply at the first failed invocation.
	FailFast ErrorPolicy = "fail_fast"

	// LogAndContinue logs the failure, drops that invocation's edits and
	// moves on.
	LogAndContinue ErrorPolicy = "log_and_continue"
)

// ErrRemoveRoot is returned when an intent would detach the tree's root.
var ErrRemoveRoot = errors.New("cannot remove the root element")

// Engine runs mappers over a tree and is the only code that mutates it.
//
// Mismatch, conflict and quota errors always end Apply. Callback, edit and
// apply failures follow the error policy.
type Engine struct {
	maxSteps int
	base     filter.BaseResolver
	types    TypeResolver
	policy   ErrorPolicy
	strict   bool
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSteps bounds callback invocations per Apply. Zero disables it.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) { e.maxSteps = maxSteps }
}

// WithBaseResolver lets base hierarchy predicates see superclasses.
func WithBaseResolver(r filter.BaseResolver) Option {
	return func(e *Engine) { e.base = r }
}

// WithTypeResolver backs Scope.ResolveType.
func WithTypeResolver(r TypeResolver) Option {
	return func(e *Engine) { e.types = r }
}

// WithErrorPolicy sets the policy for failed invocations.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithStrictEdits rejects contradictory decisions instead of letting the
// last one win.
func WithStrictEdits() Option {
	return func(e *Engine) { e.strict = true }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxSteps: DefaultMaxSteps,
		policy:   FailFast,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result summarizes one Apply.
type Result struct {
	// Root is the tree root after all mappers ran. It differs from the
	// input root only when a mapper replaced the root itself.
	Root ir.Element

	Visited int // elements offered to a filter
	Matched int // elements a filter accepted
	Applied int // intents other than NoChange applied to the tree
	Skipped int // elements detached by an earlier edit before their turn
	Failed  int // invocations dropped under LogAndContinue

	// Intents counts applied intents by kind.
	Intents map[string]int
}

// Apply runs mappers in order. Each mapper sees the tree its predecessors
// left behind and visits the elements present when it started, in
// pre-order. Elements detached by an earlier invocation of the same mapper
// are skipped.
//
// ctx is checked between mappers.
func (e *Engine) Apply(ctx context.Context, root ir.Element, mappers ...Mapper) (*Result, error) {
	if root == nil {
		return nil, ir.ErrNilElement
	}
	for _, m := range mappers {
		if err := Check(m); err != nil {
			return nil, err
		}
	}

	res := &Result{Root: root, Intents: make(map[string]int)}
	quota := NewQuotaEnforcer(e.maxSteps)
	ev := filter.NewEvaluator(e.base)

	for _, m := range mappers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.run(ev, quota, m, res); err != nil {
			return res, err
		}
	}

	e.logger.Info("mapping applied",
		"mappers", len(mappers),
		"visited", res.Visited,
		"matched", res.Matched,
		"applied", res.Applied,
		"failed", res.Failed)
	return res, nil
}

func (e *Engine) run(ev *filter.Evaluator, quota *QuotaEnforcer, m Mapper, res *Result) error {
	name := NameOf(m)
	pred := m.Filter()

	// Parents whose subtree back-references were rebuilt since the tree
	// last changed.
	normalized := make(map[ir.Element]bool)

	// Decoded or staged trees may lack parent pointers.
	ir.SetParents(res.Root)
	normalized[res.Root] = true

	for _, el := range slices.Collect(ir.Walk(res.Root)) {
		if ir.Root(el) != res.Root {
			res.Skipped++
			continue
		}
		res.Visited++
		if !ev.Matches(pred, el) {
			continue
		}
		res.Matched++

		if err := quota.Check(name); err != nil {
			e.logger.Error("max steps quota exceeded",
				"mapper", name,
				"steps", quota.Current(),
				"limit", quota.MaxSteps())
			return err
		}

		req := RequestFor(el)
		if !normalized[req.Parent] {
			ir.SetParents(req.Parent)
			normalized[req.Parent] = true
		}

		in, err := e.invoke(m, name, req)
		if err == nil {
			err = e.apply(res, el, in)
			if err != nil {
				err = &InvocationError{Mapper: name, Element: el.String(), Stage: "apply", Err: err}
			}
		}
		if err != nil {
			if err := e.handle(res, err); err != nil {
				return err
			}
			continue
		}

		if _, ok := in.(NoChange); !ok {
			clear(normalized)
			res.Applied++
			res.Intents[IntentKind(in)]++
			e.logger.Debug("intent applied",
				"mapper", name,
				"element", el.String(),
				"intent", in.String())
		}
	}
	return nil
}

// invoke runs the callback against a fresh scope and folds its log.
func (e *Engine) invoke(m Mapper, name string, req Request) (Intent, error) {
	s := NewScope(req, e.types)
	el := s.Target()

	if err := m.Map(s, el); err != nil {
		if IsMismatchError(err) {
			return nil, err
		}
		return nil, &InvocationError{Mapper: name, Element: el.String(), Stage: "callback", Err: err}
	}
	if err := s.Err(); err != nil {
		return nil, &InvocationError{Mapper: name, Element: el.String(), Stage: "edit", Err: err}
	}

	log := s.Log()
	if e.strict {
		if err := Conflicts(log); err != nil {
			var ce *ConflictError
			if errors.As(err, &ce) {
				ce.Mapper, ce.Element = name, el.String()
			}
			return nil, err
		}
	}
	return Collapse(el, log), nil
}

// handle applies the error policy. Returns the error when Apply must stop.
func (e *Engine) handle(res *Result, err error) error {
	var ie *InvocationError
	if !errors.As(err, &ie) || e.policy != LogAndContinue {
		return err
	}
	res.Failed++
	e.logger.Warn("mapping invocation skipped",
		"mapper", ie.Mapper,
		"element", ie.Element,
		"stage", ie.Stage,
		"error", ie.Err)
	return nil
}

func (e *Engine) apply(res *Result, el ir.Element, in Intent) error {
	switch in := in.(type) {
	case NoChange:
		return nil
	case RemoveSelf:
		return remove(el)
	case RemoveParent:
		return remove(el.Parent())
	case ReplaceSelf:
		return replace(res, el, in.With)
	case ReplaceParent:
		return replace(res, el.Parent(), in.With)
	case AddToSelf:
		return ir.AddChild(el, in.Child)
	case AddToParent:
		if el.Parent() == nil {
			return fmt.Errorf("add to parent of %s: %w", el, ErrUnreachable)
		}
		return ir.AddChild(el.Parent(), in.Child)
	}
	return fmt.Errorf("unknown intent %T", in)
}

func remove(x ir.Element) error {
	if x == nil {
		return fmt.Errorf("remove: %w", ErrUnreachable)
	}
	p := x.Parent()
	if p == nil {
		return ErrRemoveRoot
	}
	if !ir.RemoveChild(p, x) {
		return fmt.Errorf("remove %s from %s: %w", x, p, ir.ErrNotChild)
	}
	return nil
}

func replace(res *Result, old, with ir.Element) error {
	if old == nil {
		return fmt.Errorf("replace: %w", ErrUnreachable)
	}
	if with == nil {
		return fmt.Errorf("replace %s: %w", old, ir.ErrNilElement)
	}
	p := old.Parent()
	if p != nil {
		return ir.ReplaceChild(p, old, with)
	}
	if old != res.Root {
		return fmt.Errorf("replace %s: %w", old, ErrUnreachable)
	}
	ir.SetParents(with)
	res.Root = with
	return nil
}

// IntentKind names an intent's variant.
func IntentKind(in Intent) string {
	switch in.(type) {
	case NoChange:
		return "no_change"
	case RemoveSelf:
		return "remove_self"
	case RemoveParent:
		return "remove_parent"
	case ReplaceSelf:
		return "replace_self"
	case ReplaceParent:
		return "replace_parent"
	case AddToSelf:
		return "add_to_self"
	case AddToParent:
		return "add_to_parent"
	}
	return "unknown"
}
