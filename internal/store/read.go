package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/ir"
	"github.com/roach88/cbind/internal/querysql"
)

// ReadSnapshot retrieves a snapshot by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, module, fingerprint, seq, element_count
		FROM snapshots
		WHERE id = ?
	`, id).Scan(&snap.ID, &snap.Module, &snap.Fingerprint, &snap.Seq, &snap.Elements)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// ListSnapshots returns the snapshots of module, or of every module when
// module is empty, ordered by seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSnapshots(ctx context.Context, module string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, module, fingerprint, seq, element_count
		FROM snapshots
		WHERE ? = '' OR module = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, module, module)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Module, &snap.Fingerprint, &snap.Seq, &snap.Elements); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// Latest returns the snapshot of module with the highest seq.
// Returns sql.ErrNoRows if module has none.
func (s *Store) Latest(ctx context.Context, module string) (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, module, fingerprint, seq, element_count
		FROM snapshots
		WHERE module = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, module).Scan(&snap.ID, &snap.Module, &snap.Fingerprint, &snap.Seq, &snap.Elements)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Elements returns every row of a snapshot in pre-order.
func (s *Store) Elements(ctx context.Context, id string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, depth, ord, kind, name, qualified, method_kind,
		       return_type, has_return_type, description, attrs, fingerprint
		FROM elements
		WHERE snapshot_id = ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query elements: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r     Row
			kind  string
			attrs string
		)
		if err := rows.Scan(&r.ID, &r.ParentID, &r.Depth, &r.Ord, &kind, &r.Name, &r.Qualified,
			&r.MethodKind, &r.ReturnType, &r.HasReturnType, &r.Description, &attrs, &r.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		r.Kind, r.Attrs = ir.Kind(kind), []byte(attrs)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate elements: %w", err)
	}
	return out, nil
}

// LoadTree rebuilds the tree of a snapshot with parent links set.
// Returns sql.ErrNoRows if the snapshot has no elements.
func (s *Store) LoadTree(ctx context.Context, id string) (ir.Element, error) {
	rows, err := s.Elements(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}

	// Pre-order guarantees a parent precedes its children.
	built := make([]ir.Element, len(rows))
	for i, r := range rows {
		e, err := ir.UnmarshalElement(r.Attrs)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", r.ID, err)
		}
		built[i] = e
		if r.ParentID < 0 {
			continue
		}
		if r.ParentID >= i {
			return nil, fmt.Errorf("element %d: parent %d out of order", r.ID, r.ParentID)
		}
		ir.Adopt(built[r.ParentID], e)
	}
	ir.SetParents(built[0])
	return built[0], nil
}

// Match is one element selected by Select.
type Match struct {
	ID          int     `json:"id"`
	ParentID    int     `json:"parent_id"`
	Kind        ir.Kind `json:"kind"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

// Select evaluates p against a snapshot in SQL. Results are in document
// order. Predicates outside the compilable subset are rejected.
func (s *Store) Select(ctx context.Context, id string, p filter.Predicate) ([]Match, error) {
	query, params, err := querysql.NewSQLCompiler(id).Compile(p)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("select elements: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var (
			m    Match
			kind string
		)
		if err := rows.Scan(&m.ID, &m.ParentID, &kind, &m.Name, &m.Description); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Kind = ir.Kind(kind)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}
