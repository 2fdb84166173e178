package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// response mirrors CLIResponse with the payload left raw for typed decoding.
type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// execute runs the root command with args and returns stdout, stderr, and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// executeJSON runs a command against db with --format json and decodes the
// response.
func executeJSON(t *testing.T, db string, args ...string) (response, error) {
	t.Helper()
	args = append([]string{"--format", "json", "--db", db}, args...)
	out, _, err := execute(t, args...)
	var resp response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp, err
}

func decodeData(t *testing.T, resp response, v any) {
	t.Helper()
	require.Equal(t, "ok", resp.Status, "error: %+v", resp.Error)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "huddle.db")
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
