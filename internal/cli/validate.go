package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/cbind/internal/rules"
)

// RuleInfo describes one compiled rule.
type RuleInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Filter      string   `json:"filter"`
	Actions     []string `json:"actions"`
}

// ValidationError is one rule that failed to compile.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  []string          `json:"files"`
	Rules  []RuleInfo        `json:"rules"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules>...",
		Short: "Validate mapping rules without generating",
		Long: `Compile mapping rule files or directories and report every problem.

Unknown fields are reported with a suggestion for the closest known one.

Exit codes:
  0 - All rules valid
  1 - One or more rules failed to compile
  2 - Command error (unreadable paths, etc.)

Examples:
  cbind validate rules/
  cbind validate rules/strip_const.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	set, errs := rules.Load(paths)
	if len(set.Files) == 0 && len(errs) > 0 {
		_ = formatter.Error(ErrCodeNotFound, errs[0].Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeNotFound, errs[0])
	}
	formatter.VerboseLog("Compiled %d rule(s) from %d file(s)", len(set.Rules), len(set.Files))

	result := ValidationResult{
		Valid:  len(errs) == 0,
		Files:  set.Files,
		Rules:  make([]RuleInfo, 0, len(set.Rules)),
		Errors: validationErrors(errs),
	}
	for _, r := range set.Rules {
		info := RuleInfo{Name: r.Name(), Description: r.Description(), Filter: r.Filter().String()}
		for _, a := range r.Actions() {
			info.Actions = append(info.Actions, a.String())
		}
		result.Rules = append(result.Rules, info)
	}

	if formatter.JSON() {
		if err := outputValidateJSON(formatter, result); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, result)
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func validationErrors(errs []error) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, err := range errs {
		var ce *rules.CompileError
		if !errors.As(err, &ce) {
			out = append(out, ValidationError{Message: err.Error()})
			continue
		}
		ve := ValidationError{Rule: ce.Rule, Field: ce.Field, Message: ce.Message}
		if ce.Pos.IsValid() {
			ve.File, ve.Line = ce.Pos.Filename(), ce.Pos.Line()
		}
		out = append(out, ve)
	}
	return out
}

func outputValidateJSON(f *OutputFormatter, result ValidationResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if !result.Valid {
		resp.Status = "error"
		resp.Error = &CLIError{Code: ErrCodeRules, Message: result.Errors[0].Message}
	}
	return f.encode(resp)
}

func outputValidateText(f *OutputFormatter, result ValidationResult) {
	if len(result.Rules) > 0 {
		rows := make([]table.Row, len(result.Rules))
		for i, r := range result.Rules {
			rows[i] = table.Row{r.Name, r.Filter, strings.Join(r.Actions, ", ")}
		}
		f.Table(table.Row{"Rule", "Filter", "Actions"}, rows)
	}

	if result.Valid {
		f.Pass("All rules valid (%d rules, %d files)", len(result.Rules), len(result.Files))
		return
	}

	f.Failed("Validation failed")
	fmt.Fprintln(f.Writer)
	for _, e := range result.Errors {
		if e.File != "" {
			fmt.Fprintf(f.Writer, "%s:%d\n", e.File, e.Line)
		}
		where := e.Field
		if e.Rule != "" {
			where = e.Rule + "." + e.Field
		}
		if where != "" {
			fmt.Fprintf(f.Writer, "  %s: %s\n\n", where, e.Message)
		} else {
			fmt.Fprintf(f.Writer, "  %s\n\n", e.Message)
		}
	}
}
