package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/cbind/internal/config"
	"github.com/roach88/cbind/internal/filter"
	"github.com/roach88/cbind/internal/rules"
	"github.com/roach88/cbind/internal/session"
	"github.com/roach88/cbind/internal/store"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Filter string
}

// GeneratedFile is one written output file.
type GeneratedFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// GenerateResult is the outcome of one generate run.
type GenerateResult struct {
	Module      string          `json:"module"`
	Dir         string          `json:"dir"`
	Files       []GeneratedFile `json:"files"`
	Snapshot    store.Snapshot  `json:"snapshot"`
	Classes     int             `json:"classes"`
	Functions   int             `json:"functions"`
	Dropped     int             `json:"dropped"`
	Rules       int             `json:"rules"`
	Applied     int             `json:"applied"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate [headers...]",
		Short: "Generate bindings for C++ headers",
		Long: `Index C++ headers, select and resolve the classes to bind, apply the
configured mapping rules and write the bindings.

Headers given as arguments replace the configured ones; doublestar globs
are expanded. Every other setting comes from the config file, CBIND_
environment variables or the flags below.

Examples:
  cbind generate --module geo include/geo/*.h
  cbind generate -c cbind.yaml --filter 'class_qualified: starts_with: "geo::"'
  cbind generate --module geo --rules rules/ --output-dir gen 'include/**/*.h'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Filter, "filter", "", "inclusion filter in rule filter syntax (default: non-std classes and free functions)")
	f.String("module", "", "module name")
	f.String("package", "", "host package of the generated wrappers")
	f.String("output-dir", "", "output directory")
	f.String("reference-policy", "", "unresolvable references: ignore|opaque|throw|include")
	f.String("error-policy", "", "mapping failures: fail_fast|log_and_continue")
	f.String("allocation", "", "allocation style: direct|stack")
	f.Int("max-steps", 0, "mapping step quota")
	f.StringSlice("rules", nil, "rule files or directories, applied in order")
	f.StringSlice("libraries", nil, "libraries the bindings link against")
	f.StringSlice("include-paths", nil, "header search directories")
	f.Bool("debug", false, "log session debug records")

	return cmd
}

func runGenerate(opts *GenerateOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	cfg, err := config.Load(opts.ConfigPath, config.WithFlags(cmd.Flags()))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	if len(args) > 0 {
		cfg.Headers = args
	}
	if len(cfg.Headers) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, errors.New("no headers: pass them as arguments or set headers in the config"))
	}

	pred := filter.Default()
	if opts.Filter != "" {
		if pred, err = rules.ParseFilter(opts.Filter); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeFilter, err)
		}
	}

	set, errs := rules.Load(cfg.Rules)
	if len(errs) > 0 {
		for _, e := range errs {
			formatter.VerboseLog("%v", e)
		}
		return formatter.Fail(ExitCommandError, ErrCodeRules, errors.Join(errs...))
	}
	formatter.VerboseLog("Loaded %d rule(s) from %d file(s)", len(set.Rules), len(set.Files))

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(session.WithConfig(*cfg), session.WithLogger(logger))
	defer sess.Close()
	logger.Debug("session started", "session", sess.ID(), "module", cfg.Module)

	res, err := generate(ctx, sess, cfg, pred, set)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}

	if formatter.JSON() {
		return formatter.Success(res)
	}
	return outputGenerateText(formatter, res)
}

func generate(ctx context.Context, sess *session.Session, cfg *config.Config, pred filter.Predicate, set *rules.Set) (*GenerateResult, error) {
	err := sess.Index(ctx, session.IndexRequest{
		Headers:    cfg.Headers,
		Libraries:  cfg.Libraries,
		HeaderDirs: cfg.IncludePaths,
	})
	if err != nil {
		return nil, err
	}
	diags, err := sess.Diagnostics(ctx)
	if err != nil {
		return nil, err
	}

	resolved, err := sess.FilterAndResolve(ctx, pred)
	if err != nil {
		return nil, err
	}
	for _, m := range set.Mappers() {
		if err := sess.AddMapping(ctx, m); err != nil {
			return nil, err
		}
	}
	wr, err := sess.WriteTo(ctx, cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	res := &GenerateResult{
		Module:    cfg.Module,
		Dir:       wr.Dir,
		Snapshot:  wr.Snapshot,
		Classes:   resolved.Classes,
		Functions: resolved.Functions,
		Dropped:   len(resolved.Dropped),
		Rules:     len(set.Rules),
	}
	if wr.Mapping != nil {
		res.Applied = wr.Mapping.Applied
	}
	for _, d := range diags {
		res.Diagnostics = append(res.Diagnostics, d.String())
	}
	for _, path := range wr.Files {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		res.Files = append(res.Files, GeneratedFile{Path: path, Size: info.Size()})
	}
	return res, nil
}

func outputGenerateText(f *OutputFormatter, res *GenerateResult) error {
	for _, d := range res.Diagnostics {
		fmt.Fprintf(f.GetErrWriter(), "warning: %s\n", d)
	}

	rows := make([]table.Row, len(res.Files))
	var total int64
	for i, file := range res.Files {
		rows[i] = table.Row{file.Path, humanize.Bytes(uint64(file.Size))}
		total += file.Size
	}
	f.Table(table.Row{"File", "Size"}, rows, "Total", humanize.Bytes(uint64(total)))

	f.Pass("Generated %s: %d classes, %d functions, %d elements (%d dropped, %d rule edits)",
		res.Module, res.Classes, res.Functions, res.Snapshot.Elements, res.Dropped, res.Applied)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
