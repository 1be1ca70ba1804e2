package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finos/morphir-scala/internal/artifact"
	"github.com/finos/morphir-scala/mirc"
)

// =============================================================================
// Conformance cases
// =============================================================================

func TestConformanceCases(t *testing.T) {
	cases, err := LoadCases("testdata/cases")
	require.NoError(t, err)
	require.NotEmpty(t, cases)

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			res, err := Run(context.Background(), c, t.TempDir())
			require.NoError(t, err)

			for _, m := range Check(c, res) {
				t.Error(m)
			}
			if c.Golden {
				AssertGolden(t, res)
			}
		})
	}
}

func TestRunIsRepeatable(t *testing.T) {
	c, err := LoadCase("testdata/cases/01_finance_imports.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), c, t.TempDir())
	require.NoError(t, err)
	second, err := Run(context.Background(), c, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, string(Snapshot(first)), string(Snapshot(second)))
	assert.Equal(t, first.RunID, second.RunID, "run ids come from a per-case sequence")
	assert.Equal(t, first.Recorded.StartedAt, second.Recorded.StartedAt)
}

func TestRunRecordsLedger(t *testing.T) {
	c := &Case{
		Name:        "ledger",
		Description: "recorded",
		Text:        "val x: Int = 1",
		Expect:      Expect{Status: "ok"},
	}
	dir := t.TempDir()

	res, err := Run(context.Background(), c, dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "ledger.db"))
	assert.Equal(t, "ledger-1", res.RunID)
	assert.Equal(t, res.RunID, res.Recorded.ID)
	assert.Equal(t, "ok", res.Recorded.Status)
	assert.Equal(t, "collect-all", res.Recorded.Mode)
	assert.True(t, caseEpoch.Equal(res.Recorded.StartedAt), "started at %v", res.Recorded.StartedAt)
	assert.Len(t, res.Recorded.Artifacts, 3)
	assert.Empty(t, Check(c, res))
}

func TestRunFatalFailureIsError(t *testing.T) {
	c := &Case{
		Name:        "empty",
		Description: "no sources",
		Files:       map[string]string{"notes.txt": "not source"},
		Expect:      Expect{Status: "failed"},
	}

	_, err := Run(context.Background(), c, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case empty")
	assert.Contains(t, err.Error(), "no source files")
}

// =============================================================================
// Checking
// =============================================================================

func TestCheckReportsEveryMismatch(t *testing.T) {
	c := &Case{
		Expect: Expect{
			Status:    "ok",
			Artifacts: []string{"a.mir"},
			Outcomes:  map[string]string{"a.scala": "ok", "z.scala": "ok"},
		},
	}
	res := &Result{
		Status:    "partial",
		Codes:     []string{"E401"},
		Artifacts: []string{"a.mir", "b.mir"},
	}
	res.Units = []mirc.UnitResult{{ID: "a.scala", Outcome: mirc.OutcomeFailed}}
	res.Recorded.Status = "partial"
	res.Recorded.Artifacts = make([]artifact.Artifact, 2)

	mm := Check(c, res)
	fields := make([]string, len(mm))
	for i, m := range mm {
		fields[i] = m.Field
	}
	assert.Equal(t, []string{"status", "codes", "artifacts", "outcomes.a.scala", "outcomes.z.scala"}, fields)
	assert.Equal(t, "codes: want [], got [E401]", mm[1].String())
	assert.Equal(t, "no such unit", mm[4].Got)

	err := CheckError(mm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status: want ok, got partial")
	assert.NoError(t, CheckError(nil))
}

func TestCheckComparesLedger(t *testing.T) {
	c := &Case{Expect: Expect{Status: "ok"}}
	res := &Result{Status: "ok", Artifacts: []string{"a.mir"}}
	res.Recorded.Status = "failed"

	mm := Check(c, res)
	require.Len(t, mm, 2)
	assert.Equal(t, "recorded status", mm[0].Field)
	assert.Equal(t, "recorded artifacts", mm[1].Field)
}

// =============================================================================
// Loading
// =============================================================================

func writeCase(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "case.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadCase(t *testing.T) {
	c, err := LoadCase("testdata/cases/03_fail_fast.yaml")
	require.NoError(t, err)

	assert.Equal(t, "fail_fast", c.Name)
	assert.Equal(t, ModeFailFast, c.Mode)
	assert.False(t, c.platform())
	assert.Len(t, c.Files, 3)
	assert.Equal(t, "def f(): Int = \"s\"\n", c.Files["b.scala"])
	assert.Equal(t, []string{"E401", "E010"}, c.Expect.Codes)
	assert.Equal(t, "skipped", c.Expect.Outcomes["c.scala"])
}

func TestLoadCaseDefaults(t *testing.T) {
	c, err := LoadCase(writeCase(t, `
name: defaults
description: "defaults"
text: "val x: Int = 1"
expect:
  status: ok
`))
	require.NoError(t, err)
	assert.True(t, c.platform())
	assert.Equal(t, "collect-all", c.compileMode().String())
	assert.False(t, c.Golden)
}

func TestLoadCaseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown field",
			body: "name: x\ndescription: d\ntext: t\nexpect: {status: ok}\nexpects: {}\n",
			want: "field expects not found",
		},
		{
			name: "missing name",
			body: "description: d\ntext: t\nexpect: {status: ok}\n",
			want: "name is required",
		},
		{
			name: "missing description",
			body: "name: x\ntext: t\nexpect: {status: ok}\n",
			want: "description is required",
		},
		{
			name: "no input",
			body: "name: x\ndescription: d\nexpect: {status: ok}\n",
			want: "files or text is required",
		},
		{
			name: "both inputs",
			body: "name: x\ndescription: d\ntext: t\nfiles: {a.scala: t}\nexpect: {status: ok}\n",
			want: "not both",
		},
		{
			name: "escaping path",
			body: "name: x\ndescription: d\nfiles: {../a.scala: t}\nexpect: {status: ok}\n",
			want: "relative path inside the case",
		},
		{
			name: "bad mode",
			body: "name: x\ndescription: d\ntext: t\nmode: eager\nexpect: {status: ok}\n",
			want: `got "eager"`,
		},
		{
			name: "negative workers",
			body: "name: x\ndescription: d\ntext: t\nworkers: -1\nexpect: {status: ok}\n",
			want: "workers must not be negative",
		},
		{
			name: "bad status",
			body: "name: x\ndescription: d\ntext: t\nexpect: {status: done}\n",
			want: `expect.status must be ok, partial or failed, got "done"`,
		},
		{
			name: "bad outcome",
			body: "name: x\ndescription: d\ntext: t\nexpect: {status: ok, outcomes: {snippet: fine}}\n",
			want: `expect.outcomes.snippet: unknown outcome "fine"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCase(writeCase(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCaseMissingFile(t *testing.T) {
	_, err := LoadCase(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCasesRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	body := "name: same\ndescription: d\ntext: t\nexpect: {status: ok}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(body), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(body), 0o644))

	_, err := LoadCases(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `case name "same" used by both a.yaml and b.yaml`)
}
