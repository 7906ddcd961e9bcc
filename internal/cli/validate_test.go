package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidRules(t *testing.T) {
	dir := writeRules(t, map[string]string{"strip.cue": ruleStripConst})

	stdout, _, err := execute(t, NewValidateCommand(textOpts()), filepath.Join(dir, "strip.cue"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "strip_const")
	assert.Contains(t, stdout, "✓ All rules valid (1 rules, 1 files)")
}

func TestValidateValidRulesJSON(t *testing.T) {
	dir := writeRules(t, map[string]string{"strip.cue": ruleStripConst})

	stdout, _, err := execute(t, NewValidateCommand(jsonOpts()), dir)
	require.NoError(t, err)

	resp, res := decodeResponse[ValidationResult](t, stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, res.Valid)
	require.Len(t, res.Rules, 1)
	assert.Equal(t, "strip_const", res.Rules[0].Name)
	assert.Equal(t, "const reference returns become plain references", res.Rules[0].Description)
	assert.Len(t, res.Rules[0].Actions, 1)
}

func TestValidateInvalidRules(t *testing.T) {
	dir := writeRules(t, map[string]string{"bad.cue": `
rule: drop: {
	filter: kind: "method"
	acton: remove: true
}
`})

	stdout, _, err := execute(t, NewValidateCommand(textOpts()), filepath.Join(dir, "bad.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ Validation failed")
	assert.Contains(t, stdout, `did you mean "action"?`)
}

func TestValidateInvalidRulesJSON(t *testing.T) {
	dir := writeRules(t, map[string]string{"bad.cue": `
rule: drop: {
	filter: clas_name: "Shape"
	action: remove: true
}
`})

	stdout, _, err := execute(t, NewValidateCommand(jsonOpts()), dir)
	require.Error(t, err)

	resp, res := decodeResponse[ValidationResult](t, stdout)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRules, resp.Error.Code)
	assert.False(t, res.Valid)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "drop", res.Errors[0].Rule)
	assert.Positive(t, res.Errors[0].Line)
}

func TestValidateNonExistentPath(t *testing.T) {
	stdout, _, err := execute(t, NewValidateCommand(textOpts()), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "rules not found")
}

func TestValidateMissingArgs(t *testing.T) {
	_, _, err := execute(t, NewValidateCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}
