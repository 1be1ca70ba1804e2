package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "morphirc", cmd.Use)
	assert.Contains(t, cmd.Long, "MIR")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"compile", "inspect", "disasm", "runs", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	logFormat := cmd.PersistentFlags().Lookup("log-format")
	require.NotNil(t, logFormat)
	assert.Equal(t, "text", logFormat.DefValue)
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	output := compileCmd.Flags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "o", output.Shorthand)

	for _, name := range []string{"text", "fail-fast", "workers", "timeout", "config", "ledger", "no-platform"} {
		assert.NotNil(t, compileCmd.Flags().Lookup(name), "flag --%s", name)
	}
}

func TestRunsCommandRequiresLedger(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"runs"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidFormat(t *testing.T) {
	for _, args := range [][]string{
		{"--format", "xml", "version"},
		{"--log-format", "logfmt", "version"},
	} {
		cmd := NewRootCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)

		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	}
}

func TestVersionCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "morphirc dev (mir schema 1, bytecode 1)\n", buf.String())

	buf.Reset()
	cmd = NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version", "--format", "json"})
	require.NoError(t, cmd.Execute())
	assert.JSONEq(t, `{"status":"ok","data":{"version":"dev","mirSchema":1,"bytecodeVersion":1}}`, buf.String())
}
