package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCommand(t *testing.T) {
	d := t.TempDir()
	cfgPath := filepath.Join(d, "runner.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("variant: parser\n"), 0o644))
	t.Setenv("RUNNER_WORK_DIR", filepath.Join(d, "work"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"handle", "--config", cfgPath, "@eval `1 + 1`"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "```Not working at the moment as you can see\n[EVAL]: 1 + 1```\n", out.String())

	out.Reset()
	rootCmd.SetArgs([]string{"handle", "--config", cfgPath, "|compile rust\nfn main() {}"})
	assert.Error(t, rootCmd.Execute())
}
