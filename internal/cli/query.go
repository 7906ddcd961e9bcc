package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/cbind/internal/rules"
	"github.com/roach88/cbind/internal/store"
)

// SnapshotOptions selects a snapshot of a snapshot database.
type SnapshotOptions struct {
	*RootOptions
	Snapshot string
	Module   string
}

func (o *SnapshotOptions) flags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Snapshot, "snapshot", "", "snapshot ID (default: the latest)")
	cmd.Flags().StringVar(&o.Module, "module", "", "module whose latest snapshot to use (default: any)")
}

// QueryResult is the outcome of a query.
type QueryResult struct {
	Snapshot store.Snapshot `json:"snapshot"`
	Filter   string         `json:"filter"`
	Matches  []store.Match  `json:"matches"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <db> <filter>",
		Short: "Select elements of a written snapshot",
		Long: `Evaluate a filter against a snapshot database written by generate.

The filter uses the rule filter syntax and runs in SQL; filters outside the
compilable subset are rejected.

Examples:
  cbind query out/geo.db 'kind: "class"'
  cbind query out/geo.db 'method_return_type: starts_with: "const "' --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}
	opts.flags(cmd)

	return cmd
}

func runQuery(opts *SnapshotOptions, dbPath, src string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	pred, err := rules.ParseFilter(src)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeFilter, err)
	}

	st, snap, err := openSnapshot(ctx, dbPath, opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, codeFor(err), err)
	}
	defer st.Close()
	formatter.VerboseLog("Querying snapshot %s (%s, %d elements)", snap.ID, snap.Module, snap.Elements)

	matches, err := st.Select(ctx, snap.ID, pred)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeFilter, err)
	}

	if formatter.JSON() {
		return formatter.Success(QueryResult{Snapshot: snap, Filter: pred.String(), Matches: matches})
	}

	rows := make([]table.Row, len(matches))
	for i, m := range matches {
		rows[i] = table.Row{m.ID, m.Kind, m.Description}
	}
	formatter.Table(table.Row{"ID", "Kind", "Element"}, rows, "", "", fmt.Sprintf("%d match(es)", len(matches)))
	return nil
}

var errSnapshotNotFound = errors.New("snapshot not found")

// openSnapshot opens the database at path and picks the snapshot opts
// name, or the latest one.
func openSnapshot(ctx context.Context, path string, opts *SnapshotOptions) (*store.Store, store.Snapshot, error) {
	st, err := store.OpenExisting(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.Snapshot{}, fmt.Errorf("%w: %s", errSnapshotNotFound, path)
	}
	if err != nil {
		return nil, store.Snapshot{}, err
	}

	snap, err := pickSnapshot(ctx, st, opts)
	if err != nil {
		st.Close()
		return nil, store.Snapshot{}, err
	}
	return st, snap, nil
}

func pickSnapshot(ctx context.Context, st *store.Store, opts *SnapshotOptions) (store.Snapshot, error) {
	switch {
	case opts.Snapshot != "":
		snap, err := st.ReadSnapshot(ctx, opts.Snapshot)
		if errors.Is(err, sql.ErrNoRows) {
			return store.Snapshot{}, fmt.Errorf("%w: %s", errSnapshotNotFound, opts.Snapshot)
		}
		return snap, err
	case opts.Module != "":
		snap, err := st.Latest(ctx, opts.Module)
		if errors.Is(err, sql.ErrNoRows) {
			return store.Snapshot{}, fmt.Errorf("%w: no snapshot of module %s", errSnapshotNotFound, opts.Module)
		}
		return snap, err
	}
	snaps, err := st.ListSnapshots(ctx, "")
	if err != nil {
		return store.Snapshot{}, err
	}
	if len(snaps) == 0 {
		return store.Snapshot{}, fmt.Errorf("%w: database is empty", errSnapshotNotFound)
	}
	return snaps[len(snaps)-1], nil
}

func codeFor(err error) string {
	if errors.Is(err, errSnapshotNotFound) {
		return ErrCodeNotFound
	}
	return ErrCodeStore
}
