package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cbind/internal/ir"
)

// Snapshot describes one written tree.
type Snapshot struct {
	ID          string `json:"id"`
	Module      string `json:"module"`
	Fingerprint string `json:"fingerprint"`
	Seq         int64  `json:"seq"`
	Elements    int    `json:"elements"`
}

// Row is one element of a snapshot. ID is the element's pre-order position;
// the root has ParentID -1.
type Row struct {
	ID            int
	ParentID      int
	Depth         int
	Ord           int
	Kind          ir.Kind
	Name          string
	Qualified     string
	MethodKind    string
	ReturnType    string
	HasReturnType bool
	Description   string
	Attrs         []byte
	Fingerprint   string
}

// Flatten lists the subtree under root in pre-order.
func Flatten(root ir.Element) ([]Row, error) {
	var rows []Row
	var visit func(e ir.Element, parent, depth, ord int) error
	visit = func(e ir.Element, parent, depth, ord int) error {
		attrs, err := ir.MarshalElement(e)
		if err != nil {
			return fmt.Errorf("encode %s: %w", e, err)
		}
		fp, err := ir.Fingerprint(e)
		if err != nil {
			return err
		}
		row := Row{
			ID:          len(rows),
			ParentID:    parent,
			Depth:       depth,
			Ord:         ord,
			Kind:        e.Kind(),
			Description: e.String(),
			Attrs:       attrs,
			Fingerprint: fp,
		}
		describe(&row, e)
		rows = append(rows, row)

		id := row.ID
		for i, c := range e.Children() {
			if err := visit(c, id, depth+1, i); err != nil {
				return err
			}
		}
		return nil
	}
	if root == nil {
		return nil, ir.ErrNilElement
	}
	if err := visit(root, -1, 0, 0); err != nil {
		return nil, err
	}
	return rows, nil
}

// describe fills the selector columns.
func describe(r *Row, e ir.Element) {
	switch e := e.(type) {
	case *ir.TranslationUnit:
		r.Name = e.Name
	case *ir.Namespace:
		r.Name = e.Name
	case *ir.Class:
		r.Name, r.Qualified = e.Name, e.QualifiedName()
	case *ir.Template:
		r.Name, r.Qualified = e.Name, e.Qualified
	case *ir.Typedef:
		r.Name = e.Name
	case *ir.Method:
		r.Name, r.Qualified, r.MethodKind = e.Name, e.Qualified, string(e.MethodKind)
		if e.ReturnType != nil {
			r.ReturnType, r.HasReturnType = e.ReturnType.Spelling, true
		}
	case *ir.Field:
		r.Name = e.Name
	case *ir.Argument:
		r.Name = e.Name
	}
}

// WriteSnapshot stores the tree under root as a snapshot of module, stamped
// with the logical sequence number seq.
//
// Writing a tree whose snapshot ID already exists is a no-op that returns
// the stored snapshot.
func (s *Store) WriteSnapshot(ctx context.Context, module string, root ir.Element, seq int64) (Snapshot, error) {
	id, err := ir.SnapshotID(module, root)
	if err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	if existing, err := s.ReadSnapshot(ctx, id); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}

	rows, err := Flatten(root)
	if err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	snap := Snapshot{
		ID:          id,
		Module:      module,
		Fingerprint: rows[0].Fingerprint,
		Seq:         seq,
		Elements:    len(rows),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, module, fingerprint, seq, element_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, snap.ID, snap.Module, snap.Fingerprint, snap.Seq, snap.Elements); err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO elements
		(snapshot_id, id, parent_id, depth, ord, kind, name, qualified, method_kind,
		 return_type, has_return_type, description, attrs, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			snap.ID, r.ID, r.ParentID, r.Depth, r.Ord, string(r.Kind),
			r.Name, r.Qualified, r.MethodKind, r.ReturnType, r.HasReturnType,
			r.Description, string(r.Attrs), r.Fingerprint,
		); err != nil {
			return Snapshot{}, fmt.Errorf("write element %d (%s): %w", r.ID, r.Description, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: commit: %w", err)
	}
	return snap, nil
}

// DeleteSnapshot removes a snapshot and its elements. Deleting an unknown
// snapshot is not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
