package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finos/morphir-scala/internal/platform"
	"github.com/finos/morphir-scala/internal/testutil"
	"github.com/finos/morphir-scala/mirc"
)

const fullConfig = `name: finance.rates
extensions: [".scala", ".mx"]
output: build/mir
workers: 4
failFast: true
timeout: 30s
writeBackoff: 10ms
emitPlatform: false
logLevel: debug
ledger: .morphir/ledger.db
`

func issueFields(err error) []string {
	var cerr *Error
	if !errors.As(err, &cerr) {
		return nil
	}
	fields := make([]string, len(cerr.Issues))
	for i, is := range cerr.Issues {
		fields[i] = is.Field
	}
	return fields
}

// =============================================================================
// Parse
// =============================================================================

func TestParseFullFile(t *testing.T) {
	cfg, err := Parse("/proj/morphir.yaml", []byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "finance.rates", cfg.Name)
	assert.Equal(t, []string{".scala", ".mx"}, cfg.Extensions)
	assert.Equal(t, filepath.Join("/proj", "build", "mir"), cfg.Output)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Millisecond, cfg.WriteBackoff)
	assert.False(t, cfg.EmitPlatform)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, filepath.Join("/proj", ".morphir", "ledger.db"), cfg.Ledger)
}

func TestParseEmptyFileGivesDefaults(t *testing.T) {
	for _, data := range []string{"", "# nothing here\n", "{}\n"} {
		cfg, err := Parse("morphir.yaml", []byte(data))
		require.NoError(t, err, "data %q", data)
		assert.Equal(t, Default(), cfg)
	}
}

func TestParseKeepsAbsolutePaths(t *testing.T) {
	cfg, err := Parse("/proj/morphir.yaml", []byte("output: /var/out\n"))
	require.NoError(t, err)
	assert.Equal(t, "/var/out", cfg.Output)
	assert.Empty(t, cfg.Ledger)
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse("morphir.yaml", []byte("name: demo\ncolour: blue\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestParseRejectsOutOfRangeWorkers(t *testing.T) {
	_, err := Parse("morphir.yaml", []byte("name: demo\nworkers: 0\n"))

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.NotEmpty(t, cerr.Issues)
	is := cerr.Issues[0]
	assert.Equal(t, "workers", is.Field)
	assert.Equal(t, 2, is.Line)
	assert.Equal(t, 10, is.Col)
	assert.Contains(t, err.Error(), "morphir.yaml:2:10: workers: ")
}

func TestParseValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{"bad name", "name: Finance\n", "name"},
		{"bad extension", "extensions: [scala]\n", "extensions.0"},
		{"empty output", "output: \"\"\n", "output"},
		{"workers type", "workers: many\n", "workers"},
		{"bad log level", "logLevel: loud\n", "logLevel"},
		{"bad timeout", "timeout: soon\n", "timeout"},
		{"negative backoff", "writeBackoff: -1s\n", "writeBackoff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("morphir.yaml", []byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, issueFields(err), tt.field, "error: %v", err)
		})
	}
}

func TestParseDurationMessages(t *testing.T) {
	_, err := Parse("morphir.yaml", []byte("timeout: soon\n"))
	assert.EqualError(t, err, `morphir.yaml:1:10: timeout: invalid duration "soon"`)

	_, err = Parse("morphir.yaml", []byte("writeBackoff: -1s\n"))
	assert.EqualError(t, err, `morphir.yaml:1:15: writeBackoff: duration "-1s" must not be negative`)
}

func TestParseRejectsNonMapping(t *testing.T) {
	_, err := Parse("morphir.yaml", []byte("- a\n- b\n"))
	assert.EqualError(t, err, "morphir.yaml: expected a mapping at the top level")
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse("morphir.yaml", []byte("name: [unclosed\n"))
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "morphir.yaml", cerr.File)
}

// =============================================================================
// Load and Find
// =============================================================================

func TestLoadResolvesAgainstFileDir(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"proj/morphir.yaml": "output: out\nledger: ledger.db\n",
	})
	path := filepath.Join(root, "proj", FileName)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, filepath.Join(root, "proj", "out"), cfg.Output)
	assert.Equal(t, filepath.Join(root, "proj", "ledger.db"), cfg.Ledger)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFindWalksUpward(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"morphir.yaml":       "name: top\n",
		"src/deep/a.scala":   "val x: Int = 1",
		"other/morphir.yaml": "name: other\n",
	})

	got, err := Find(filepath.Join(root, "src", "deep"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), got)

	got, err = Find(filepath.Join(root, "other"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "other", FileName), got)
}

func TestFindNotFound(t *testing.T) {
	// A project file above the temp dir may exist on the host.
	_, err := Find(t.TempDir())
	if err != nil {
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

// =============================================================================
// Options
// =============================================================================

func TestOptionsMapping(t *testing.T) {
	cfg, err := Parse("/proj/morphir.yaml", []byte(fullConfig))
	require.NoError(t, err)

	opts := cfg.Options()
	assert.Equal(t, "finance.rates", opts.Project)
	assert.Equal(t, filepath.Join("/proj", "build", "mir"), opts.OutputDir)
	assert.Equal(t, []string{".scala", ".mx"}, opts.Extensions)
	assert.Equal(t, mirc.ModeFailFast, opts.Mode)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 10*time.Millisecond, opts.WriteBackoff)
	assert.Equal(t, platform.Nop{}, opts.Emitter)
}

func TestDefaultOptions(t *testing.T) {
	opts := Default().Options()
	assert.Equal(t, mirc.ModeCollectAll, opts.Mode)
	assert.Equal(t, platform.StackEmitter{}, opts.Emitter)
	assert.Zero(t, opts.Workers)
	assert.Equal(t, slog.LevelInfo, Default().Level())
}
