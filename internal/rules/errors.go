package rules

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/hbollon/go-edlib"
)

// CompileError is a rule that cannot be compiled, with its source position.
type CompileError struct {
	// Rule names the rule, empty for file-level problems.
	Rule    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	where := e.Field
	if e.Rule != "" {
		where = e.Rule + "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			where, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

// minSimilarity is the Jaro-Winkler score a known name needs to be offered
// as a suggestion.
const minSimilarity = 0.8

// suggest returns the known name closest to s, or "" when none is close.
func suggest(s string, known []string) string {
	best, bestScore := "", float32(0)
	for _, k := range known {
		score, err := edlib.StringsSimilarity(s, k, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = k, score
		}
	}
	if bestScore < minSimilarity {
		return ""
	}
	return best
}

func unknownField(rule, field, kind string, known []string, pos token.Pos) *CompileError {
	msg := fmt.Sprintf("unknown %s %q", kind, field)
	if s := suggest(field, known); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return &CompileError{Rule: rule, Field: field, Message: msg, Pos: pos}
}
