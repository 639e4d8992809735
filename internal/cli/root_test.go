package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"reconcile", "process-events", "migrate"}, names)
}

func TestReconcileFlags(t *testing.T) {
	cmd := reconcileCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--timeout", "90s"}))

	timeout, err := cmd.Flags().GetDuration("timeout")
	require.NoError(t, err)
	assert.Equal(t, "1m30s", timeout.String())
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"scanned": 3}))
	assert.JSONEq(t, `{"scanned":3}`, buf.String())
}
