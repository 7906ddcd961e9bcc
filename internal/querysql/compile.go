// Package querysql compiles filter predicates to parameterized SQL over the
// snapshot elements table written by package store.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/ir"
)

// Columns returned by every compiled query, in order.
var Columns = []string{"id", "parent_id", "kind", "name", "description"}

// SQLCompiler compiles filter predicates to parameterized SQL for SQLite.
//
// CRITICAL: every query ends in ORDER BY id, which is pre-order position in
// the snapshot, so results come back in document order.
// CRITICAL: values are always bound as parameters, never interpolated.
type SQLCompiler struct {
	// SnapshotID restricts the query to one snapshot.
	SnapshotID string
}

// NewSQLCompiler creates a compiler for one snapshot.
func NewSQLCompiler(snapshotID string) *SQLCompiler {
	return &SQLCompiler{SnapshotID: snapshotID}
}

// Compile converts a predicate to a SELECT over the elements table.
// Returns (sql, params, error). Hierarchy predicates and regex matches are
// outside the compilable subset; filter.Validate reports them as warnings.
func (c *SQLCompiler) Compile(p filter.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, fmt.Errorf("cannot compile nil predicate")
	}
	where, params, err := c.compilePredicate(p)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT %s FROM elements WHERE snapshot_id = ? AND %s ORDER BY %s",
		strings.Join(Columns, ", "), where, c.stableOrderKey())
	return sql, append([]any{c.SnapshotID}, params...), nil
}

// stableOrderKey returns the ORDER BY clause body.
// MANDATORY: every compiled query calls this.
func (c *SQLCompiler) stableOrderKey() string {
	return "id ASC"
}

func (c *SQLCompiler) compilePredicate(p filter.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "", nil, fmt.Errorf("nil predicate")
	case filter.All:
		return "1 = 1", nil, nil
	case filter.TypeKind:
		return c.compileKind(pred)
	case filter.And:
		return c.compileGroup(pred.Predicates, " AND ", "1 = 1")
	case filter.Or:
		return c.compileGroup(pred.Predicates, " OR ", "1 = 0")
	case filter.Not:
		sql, params, err := c.compilePredicate(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case filter.Hierarchy:
		return "", nil, fmt.Errorf("unsupported predicate: hierarchy target %s", pred.Target)
	case filter.StringMatch:
		return c.compileString(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileGroup(ps []filter.Predicate, sep, empty string) (string, []any, error) {
	if len(ps) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(ps))
	var params []any
	for _, p := range ps {
		sql, sub, err := c.compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, sub...)
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

func (c *SQLCompiler) compileKind(p filter.TypeKind) (string, []any, error) {
	var kinds []any
	for _, k := range p.Kinds {
		switch k {
		case filter.KindClass:
			kinds = append(kinds, string(ir.KindClass))
		case filter.KindMethod:
			kinds = append(kinds, string(ir.KindMethod))
		case filter.KindField:
			kinds = append(kinds, string(ir.KindField))
		case filter.KindType:
			kinds = append(kinds, string(ir.KindTypedef), string(ir.KindTemplate))
		case filter.KindNamespace:
			kinds = append(kinds, string(ir.KindNamespace))
		default:
			return "", nil, fmt.Errorf("unknown element kind %q", k)
		}
	}
	if len(kinds) == 0 {
		return "1 = 0", nil, nil
	}
	return "kind IN (" + placeholders(len(kinds)) + ")", kinds, nil
}

// selectorColumn maps a selector to its column and the element kind it
// applies to ("" for every kind).
func selectorColumn(s filter.Selector) (column string, kind ir.Kind, err error) {
	switch s {
	case filter.SelectStringify:
		return "description", "", nil
	case filter.SelectClassName:
		return "name", ir.KindClass, nil
	case filter.SelectClassQualified:
		return "qualified", ir.KindClass, nil
	case filter.SelectNamespace:
		return "name", ir.KindNamespace, nil
	case filter.SelectMethodName:
		return "name", ir.KindMethod, nil
	case filter.SelectMethodKind:
		return "method_kind", ir.KindMethod, nil
	case filter.SelectMethodReturnType:
		return "return_type", ir.KindMethod, nil
	}
	return "", "", fmt.Errorf("unknown selector %q", s)
}

func (c *SQLCompiler) compileString(p filter.StringMatch) (string, []any, error) {
	column, kind, err := selectorColumn(p.Selector)
	if err != nil {
		return "", nil, err
	}

	var cond string
	var param any
	switch p.Op {
	case filter.OpEquals:
		cond, param = column+" = ?", p.Value
	case filter.OpContains:
		cond, param = column+" GLOB ?", "*"+escapeGlob(p.Value)+"*"
	case filter.OpStartsWith:
		cond, param = column+" GLOB ?", escapeGlob(p.Value)+"*"
	case filter.OpEndsWith:
		cond, param = column+" GLOB ?", "*"+escapeGlob(p.Value)
	case filter.OpRegex:
		return "", nil, fmt.Errorf("unsupported predicate: regex match on %s", p.Selector)
	default:
		return "", nil, fmt.Errorf("unknown match op %q", p.Op)
	}

	if kind == "" {
		return cond, []any{param}, nil
	}
	// Selectors that only apply to one kind are false elsewhere.
	if p.Selector == filter.SelectMethodReturnType {
		return "(kind = ? AND has_return_type = 1 AND " + cond + ")", []any{string(kind), param}, nil
	}
	return "(kind = ? AND " + cond + ")", []any{string(kind), param}, nil
}

// escapeGlob quotes GLOB metacharacters. GLOB is case-sensitive, matching
// in-memory evaluation; LIKE is not.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
