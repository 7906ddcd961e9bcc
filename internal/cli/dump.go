package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/spf13/cobra"

	"github.com/roach88/cbind/internal/store"
)

// DumpElement is one element of a dumped snapshot.
type DumpElement struct {
	ID          int    `json:"id"`
	ParentID    int    `json:"parent_id"`
	Depth       int    `json:"depth"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Fingerprint string `json:"fingerprint"`
}

// DumpResult is a snapshot with its elements.
type DumpResult struct {
	Snapshot store.Snapshot `json:"snapshot"`
	Elements []DumpElement  `json:"elements"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump <db>",
		Short: "Print the element tree of a written snapshot",
		Long: `Print the element tree stored in a snapshot database, in document order.

Examples:
  cbind dump out/geo.db
  cbind dump out/geo.db --snapshot 3f2a... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, args[0], cmd)
		},
	}
	opts.flags(cmd)

	return cmd
}

func runDump(opts *SnapshotOptions, dbPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	st, snap, err := openSnapshot(ctx, dbPath, opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, codeFor(err), err)
	}
	defer st.Close()

	rows, err := st.Elements(ctx, snap.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}

	if formatter.JSON() {
		res := DumpResult{Snapshot: snap, Elements: make([]DumpElement, len(rows))}
		for i, r := range rows {
			res.Elements[i] = DumpElement{
				ID: r.ID, ParentID: r.ParentID, Depth: r.Depth,
				Kind: string(r.Kind), Description: r.Description, Fingerprint: r.Fingerprint,
			}
		}
		return formatter.Success(res)
	}

	fmt.Fprintf(formatter.Writer, "snapshot %s module=%s seq=%d elements=%d\n", snap.ID, snap.Module, snap.Seq, snap.Elements)
	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedLight)
	depth := 0
	for _, r := range rows {
		for ; depth < r.Depth; depth++ {
			l.Indent()
		}
		for ; depth > r.Depth; depth-- {
			l.UnIndent()
		}
		l.AppendItem(r.Description)
	}
	fmt.Fprintln(formatter.Writer, l.Render())
	return nil
}
