package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/specialistvlad/flowcanvas/internal/layout"
	"github.com/specialistvlad/flowcanvas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	err := Execute(context.Background(), out, args)
	return out.String(), err
}

func TestExecute_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "serve")
	assert.Contains(t, out, "layout")
}

func TestExecute_UsageErrors(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"unknown flag", []string{"serve", "--nope"}, "unknown flag: --nope"},
		{"unknown command", []string{"draw"}, "unknown command"},
		{"bad log level", []string{"serve", "--log-level", "loud"}, "invalid log-level"},
		{"bad log format", []string{"serve", "--log-format", "xml"}, "invalid log-format"},
		{"negative members", []string{"layout", "--members=-1"}, "invalid members"},
		{"stray argument", []string{"layout", "extra"}, `unknown command "extra"`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			require.Error(t, err)
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr), "want *ExitError, got %T: %v", err, err)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}

func TestLayout_Text(t *testing.T) {
	out, err := execute(t, "layout", "--members", "3")
	require.NoError(t, err)
	assert.Regexp(t, `size:\s+350 x 255`, out)
	assert.Regexp(t, `items per row:\s+2`, out)
	assert.Regexp(t, `slot 3:\s+\(25, 155\)`, out)
}

func TestLayout_JSONWithConfig(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"layout.hcl": "layout {\n  min_width = 500\n}\n",
	})
	out, err := execute(t, "layout", "-n", "1", "--json", "--config", dir)
	require.NoError(t, err)

	var c layout.Container
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, 500.0, c.Size.Width)
	assert.Equal(t, 1, c.ItemsPerRow)
	require.Len(t, c.Slots, 1)
}

func TestServe_InvalidConfig(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"flowcanvas.hcl": `server {`,
	})
	_, err := execute(t, "serve", "--config", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse HCL file")
}
