package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/finos/morphir-scala/internal/artifact"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/platform"
	"github.com/finos/morphir-scala/internal/runid"
	"github.com/finos/morphir-scala/internal/store"
	"github.com/finos/morphir-scala/internal/testutil"
	"github.com/finos/morphir-scala/mirc"
)

// caseEpoch is the first reading of every case's clock.
var caseEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Result is what a case run produced, with every path made relative so it
// can be compared across machines.
type Result struct {
	Case   string
	RunID  string
	Status string

	// Units are the unit results in unit order.
	Units []mirc.UnitResult

	// Artifacts are slash paths relative to the output directory.
	Artifacts []string

	// Diagnostics are the rendered diagnostics in report order.
	Diagnostics []string
	Codes       []string

	// Modules maps each MIR artifact path to its printed module.
	Modules map[string]string

	// Recorded is the run as read back from the ledger.
	Recorded store.RunRecord
}

// Run executes a case inside workDir, which must be empty or absent.
//
// Sources are written under workDir/src and artifacts under workDir/out;
// the run is recorded in workDir/ledger.db and read back. A run-fatal
// failure (the run ending in the Failed state) is returned as an error.
func Run(ctx context.Context, c *Case, workDir string) (*Result, error) {
	srcDir := filepath.Join(workDir, "src")
	outDir := filepath.Join(workDir, "out")

	st, err := store.Open(filepath.Join(workDir, "ledger.db"))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer st.Close()

	opts := mirc.Options{
		Project:      c.Name,
		OutputDir:    outDir,
		Mode:         c.compileMode(),
		Workers:      c.Workers,
		WriteBackoff: -1,
		Recorder:     st,
		RunIDs:       runid.NewSequence(c.Name),
		Now:          testutil.NewStepClock(caseEpoch, time.Second).Now,
	}
	if !c.platform() {
		opts.Emitter = platform.Nop{}
	}
	compiler := mirc.New(opts)

	var res *mirc.Result
	if c.Text != "" {
		res, err = compiler.Compile(ctx, c.Text)
	} else {
		if err := writeFiles(srcDir, c.Files); err != nil {
			return nil, err
		}
		res, err = compiler.CompileDir(ctx, srcDir)
	}
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", c.Name, err)
	}

	out := &Result{
		Case:    c.Name,
		RunID:   res.RunID,
		Status:  string(res.Status()),
		Units:   res.Units,
		Codes:   res.Diagnostics.Codes(),
		Modules: make(map[string]string),
	}
	for _, d := range res.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, d.Error())
	}
	for _, a := range res.Artifacts {
		rel, err := filepath.Rel(outDir, a.Path)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)
		out.Artifacts = append(out.Artifacts, rel)

		if a.Kind != artifact.KindMIR {
			continue
		}
		m, err := readModule(a.Path)
		if err != nil {
			return nil, fmt.Errorf("case %s: %s: %w", c.Name, rel, err)
		}
		out.Modules[rel] = mir.Print(m)
	}

	out.Recorded, err = st.ReadRun(ctx, res.RunID)
	if err != nil {
		return nil, fmt.Errorf("case %s: read back run: %w", c.Name, err)
	}
	return out, nil
}

func writeFiles(root string, files map[string]string) error {
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func readModule(path string) (*mir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return mir.Decode(data)
}

// Mismatch describes one way a run differed from its case's expectations.
type Mismatch struct {
	Field string
	Want  string
	Got   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: want %s, got %s", m.Field, m.Want, m.Got)
}

// Check compares a result against the case's expectations and returns
// every mismatch, or nil when the run conforms.
func Check(c *Case, res *Result) []Mismatch {
	var mm []Mismatch
	add := func(field, want, got string) {
		mm = append(mm, Mismatch{Field: field, Want: want, Got: got})
	}

	if res.Status != c.Expect.Status {
		add("status", c.Expect.Status, res.Status)
	}
	if got, want := list(res.Codes), list(c.Expect.Codes); got != want {
		add("codes", want, got)
	}
	if len(c.Expect.Artifacts) > 0 {
		if got, want := list(res.Artifacts), list(c.Expect.Artifacts); got != want {
			add("artifacts", want, got)
		}
	}

	outcomes := make(map[string]string, len(res.Units))
	for _, u := range res.Units {
		outcomes[u.ID] = u.Outcome
	}
	for _, unit := range sortedKeys(c.Expect.Outcomes) {
		want := c.Expect.Outcomes[unit]
		got, ok := outcomes[unit]
		if !ok {
			got = "no such unit"
		}
		if got != want {
			add("outcomes."+unit, want, got)
		}
	}

	if res.Recorded.Status != res.Status {
		add("recorded status", res.Status, res.Recorded.Status)
	}
	if len(res.Recorded.Artifacts) != len(res.Artifacts) {
		add("recorded artifacts", fmt.Sprint(len(res.Artifacts)), fmt.Sprint(len(res.Recorded.Artifacts)))
	}
	return mm
}

// CheckError joins mismatches into one error.
func CheckError(mm []Mismatch) error {
	if len(mm) == 0 {
		return nil
	}
	errs := make([]error, len(mm))
	for i, m := range mm {
		errs[i] = errors.New(m.String())
	}
	return errors.Join(errs...)
}

func list(xs []string) string {
	return "[" + strings.Join(xs, ", ") + "]"
}
