package filter

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownOp is returned by Unmarshal for an unrecognized "op" tag.
var ErrUnknownOp = errors.New("unknown predicate op")

type wire struct {
	Op       string          `json:"op"`
	Kinds    []ElementKind   `json:"kinds,omitempty"`
	Args     []*wire         `json:"args,omitempty"`
	Arg      *wire           `json:"arg,omitempty"`
	Target   HierarchyTarget `json:"target,omitempty"`
	Selector Selector        `json:"selector,omitempty"`
	Match    MatchOp         `json:"match,omitempty"`
	Value    string          `json:"value,omitempty"`
}

// Marshal encodes p as JSON.
func Marshal(p Predicate) ([]byte, error) {
	w, err := toWire(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// Unmarshal decodes a predicate encoded by Marshal. Groups are rebuilt with
// AndOf/OrOf, so nested groups of the same operator come back flattened.
func Unmarshal(data []byte) (Predicate, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode predicate: %w", err)
	}
	return fromWire(&w)
}

func toWire(p Predicate) (*wire, error) {
	switch p := p.(type) {
	case nil:
		return nil, errors.New("cannot encode nil predicate")
	case All:
		return &wire{Op: "all"}, nil
	case TypeKind:
		return &wire{Op: "kind", Kinds: p.Kinds}, nil
	case And:
		args, err := toWires(p.Predicates)
		return &wire{Op: "and", Args: args}, err
	case Or:
		args, err := toWires(p.Predicates)
		return &wire{Op: "or", Args: args}, err
	case Not:
		arg, err := toWire(p.Predicate)
		return &wire{Op: "not", Arg: arg}, err
	case Hierarchy:
		arg, err := toWire(p.Predicate)
		return &wire{Op: "hierarchy", Target: p.Target, Arg: arg}, err
	case StringMatch:
		return &wire{Op: "string", Selector: p.Selector, Match: p.Op, Value: p.Value}, nil
	}
	return nil, fmt.Errorf("cannot encode predicate type %T", p)
}

func toWires(ps []Predicate) ([]*wire, error) {
	out := make([]*wire, len(ps))
	for i, p := range ps {
		w, err := toWire(p)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func fromWire(w *wire) (Predicate, error) {
	if w == nil {
		return nil, errors.New("missing predicate")
	}
	switch w.Op {
	case "all":
		return All{}, nil
	case "kind":
		return TypeKind{Kinds: w.Kinds}, nil
	case "and", "or":
		ps := make([]Predicate, len(w.Args))
		for i, a := range w.Args {
			p, err := fromWire(a)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", w.Op, i, err)
			}
			ps[i] = p
		}
		if w.Op == "and" {
			return AndOf(ps...), nil
		}
		return OrOf(ps...), nil
	case "not":
		p, err := fromWire(w.Arg)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not{Predicate: p}, nil
	case "hierarchy":
		p, err := fromWire(w.Arg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", w.Target, err)
		}
		return Hierarchy{Target: w.Target, Predicate: p}, nil
	case "string":
		return StringMatch{Selector: w.Selector, Op: w.Match, Value: w.Value}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOp, w.Op)
}
