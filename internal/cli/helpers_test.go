package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cbind/internal/testutil"
)

const (
	headerShapes = `
namespace geo {
class Shape {
public:
    Shape();
    const Shape& self() const;
    double area();
};
class Hidden {
private:
    Hidden();
};
}
`
	ruleStripConst = `
rule: strip_const: {
	description: "const reference returns become plain references"
	filter: method_return_type: starts_with: "const "
	action: return_type: trim_prefix: "const "
}
`
)

// execute runs cmd with args and returns stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func textOpts() *RootOptions { return &RootOptions{Format: "text", Logger: testutil.Discard()} }

func jsonOpts() *RootOptions { return &RootOptions{Format: "json", Logger: testutil.Discard()} }

func decodeResponse[T any](t *testing.T, out string) (CLIResponse, T) {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	var data T
	if len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, &data))
	}
	return raw.CLIResponse, data
}

func writeRules(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, files)
	return dir
}

// generated runs generate over headerShapes and returns the output dir.
func generated(t *testing.T, extra ...string) string {
	t.Helper()
	isolate(t)
	headers := testutil.WriteHeaders(t, map[string]string{"shapes.h": headerShapes})
	out := filepath.Join(t.TempDir(), "out")
	args := append([]string{"--module", "geo", "--output-dir", out}, extra...)
	args = append(args, headers...)
	_, _, err := execute(t, NewGenerateCommand(textOpts()), args...)
	require.NoError(t, err)
	return out
}

// isolate keeps config lookup away from the developer's .cbind.yaml.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}
