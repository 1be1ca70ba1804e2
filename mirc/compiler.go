// Package mirc is the compiler facade. It turns inline source text or a
// directory of source files into MIR artifacts, plus the platform artifacts
// of the configured emitter.
//
// A run moves through Idle, Loading, Compiling, Encoding, Collecting and
// Done. Units are parsed, checked, emitted and encoded by a bounded pool of
// workers; artifacts are returned in unit order regardless of which worker
// finished first. A unit that fails to compile is reported through
// diagnostics and never stops the others, unless ModeFailFast is set. Load
// failures, timeouts and cancellation fail the whole run: every artifact
// already written is removed.
package mirc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finos/morphir-scala/internal/artifact"
	"github.com/finos/morphir-scala/internal/compiler"
	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/source"
)

// DefaultOutputSubdir is where directory builds write when no output
// directory is configured, relative to the base directory.
const DefaultOutputSubdir = "target/morphir"

// MIRCompiler is the two-operation compiler API: each call returns the
// ordered locations of the produced artifacts.
type MIRCompiler interface {
	CompilePaths(ctx context.Context, text string) ([]string, error)
	CompileDirPaths(ctx context.Context, base string) ([]string, error)
}

var _ MIRCompiler = (*Compiler)(nil)

// Compiler runs compilations. It holds no per-run state and is safe for
// concurrent use.
type Compiler struct {
	opts Options
}

// New creates a Compiler.
func New(opts Options) *Compiler {
	return &Compiler{opts: opts.withDefaults()}
}

// Compile compiles one inline source text.
func (c *Compiler) Compile(ctx context.Context, text string) (*Result, error) {
	return c.run(ctx, source.InlineText(text))
}

// CompileDir compiles every source file under base.
func (c *Compiler) CompileDir(ctx context.Context, base string) (*Result, error) {
	return c.run(ctx, source.Directory(base))
}

// CompilePaths is Compile reduced to the artifact paths. Unit failures are
// not errors; only run-fatal failures are.
func (c *Compiler) CompilePaths(ctx context.Context, text string) ([]string, error) {
	res, err := c.Compile(ctx, text)
	if err != nil {
		return nil, err
	}
	return res.Paths(), nil
}

// CompileDirPaths is CompileDir reduced to the artifact paths.
func (c *Compiler) CompileDirPaths(ctx context.Context, base string) ([]string, error) {
	res, err := c.CompileDir(ctx, base)
	if err != nil {
		return nil, err
	}
	return res.Paths(), nil
}

// unitState is owned by whichever worker processes the unit; phases are
// separated by barriers, so no locking is needed.
type unitState struct {
	unit    source.Unit
	module  string
	parsed  *compiler.Parsed
	checked *mir.Module
	diags   diag.List
	out     *artifact.UnitWriter
	encoded bool
	failed  bool
	skipped bool
}

// skip marks a unit the fail-fast stop kept from being processed.
func (u *unitState) skip() {
	if u.skipped || u.failed || u.encoded {
		return
	}
	u.skipped = true
	u.diags = nil
	u.checked = nil
}

type runState struct {
	opts      Options
	id        string
	in        source.Input
	log       *slog.Logger
	m         *machine
	started   time.Time
	outDir    string
	tempOut   bool
	units     []*unitState
	collector *artifact.Collector
	writer    *artifact.Writer
	haltedBy  string
}

func (c *Compiler) run(ctx context.Context, in source.Input) (*Result, error) {
	o := c.opts
	id := o.RunIDs.Generate()
	r := &runState{
		opts:    o,
		id:      id,
		in:      in,
		log:     o.Logger.With("run", id),
		m:       newMachine(id, o.Logger),
		started: o.Now(),
	}
	r.log.Info("run started", "input", in.String(), "mode", o.Mode, "project", o.Project)

	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	r.m.must(StateLoading)
	if err := r.load(ctx); err != nil {
		return r.fail(ctx, err)
	}

	r.m.must(StateCompiling)
	if err := r.compile(ctx); err != nil {
		return r.fail(ctx, err)
	}

	r.m.must(StateEncoding)
	if err := r.encode(ctx); err != nil {
		return r.fail(ctx, err)
	}

	r.m.must(StateCollecting)
	if err := ctx.Err(); err != nil {
		return r.fail(ctx, err)
	}
	arts, err := r.collector.Finalize()
	if err != nil {
		return r.fail(ctx, err)
	}
	r.m.must(StateDone)

	res := r.result(arts)
	r.record(ctx, res, nil)
	r.log.Info("run finished",
		"state", res.State, "status", res.Status(),
		"units", len(res.Units), "artifacts", len(arts), "errors", len(res.Diagnostics.Errors()))
	return res, nil
}

func (r *runState) load(ctx context.Context) error {
	o := r.opts
	if !r.in.IsInline() {
		r.outDir = o.OutputDir
		if r.outDir == "" {
			r.outDir = filepath.Join(r.in.Dir(), filepath.FromSlash(DefaultOutputSubdir))
		}
	}

	units, err := source.Load(ctx, r.in, source.Options{Extensions: o.Extensions, Skip: []string{r.outDir}})
	if err != nil {
		return err
	}

	if r.in.IsInline() {
		r.outDir = o.OutputDir
		if r.outDir == "" {
			dir, err := os.MkdirTemp("", "morphir-mir-")
			if err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			r.outDir, r.tempOut = dir, true
		}
	}

	r.collector = artifact.NewCollector(len(units))
	r.writer = artifact.NewWriter(o.FS, r.collector, o.backoff(), r.log)
	r.units = make([]*unitState, len(units))
	for i, u := range units {
		r.units[i] = &unitState{unit: u, out: r.writer.Unit(u, r.outDir)}
	}
	r.log.Debug("units loaded", "count", len(units), "output", r.outDir)
	return nil
}

// compile parses every unit, indexes the modules they declare, then checks
// and emits each unit.
func (r *runState) compile(ctx context.Context) error {
	err := r.forEach(ctx, false, func(ctx context.Context, u *unitState) error {
		u.parsed, u.diags = compiler.Parse(u.unit)
		if u.parsed != nil {
			u.module = u.parsed.Module
		}
		return nil
	})
	if err != nil {
		return err
	}

	var parsed []*compiler.Parsed
	for _, u := range r.units {
		if u.parsed != nil {
			parsed = append(parsed, u.parsed)
		}
	}
	ix, idxErrs := compiler.BuildIndex(parsed)
	for _, u := range r.units {
		if errs := idxErrs[u.unit.Index]; len(errs) > 0 {
			u.diags = append(u.diags, errs...)
			u.parsed = nil
		}
	}

	return r.forEach(ctx, true, func(ctx context.Context, u *unitState) error {
		if u.parsed == nil {
			return nil
		}
		m, diags := compiler.Check(u.parsed, ix)
		u.diags = append(u.diags, diags...)
		if m == nil {
			return nil
		}
		u.checked = m
		if err := r.emit(ctx, u); err != nil {
			return err
		}
		if r.opts.Mode == ModeFailFast {
			return r.encodeUnit(ctx, u)
		}
		return nil
	})
}

func (r *runState) emit(ctx context.Context, u *unitState) error {
	arts, err := r.opts.Emitter.Emit(ctx, u.checked, u.out)
	if err == nil {
		r.log.Debug("platform artifacts written", "unit", u.unit.ID, "emitter", r.opts.Emitter.Name(), "count", len(arts))
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	var ioErr *artifact.IOError
	if errors.As(err, &ioErr) {
		u.diags = append(u.diags, writeDiag(u.unit.ID, ioErr))
	} else {
		u.diags = append(u.diags, diag.Diagnostic{
			Code:     diag.CodeEmitFailed,
			Severity: diag.SeverityError,
			Kind:     diag.KindEmit,
			Phase:    diag.PhaseEmit,
			Unit:     u.unit.ID,
			Message:  fmt.Sprintf("%s emitter: %v", r.opts.Emitter.Name(), err),
		})
	}
	u.checked = nil
	return nil
}

// encode pickles and writes the MIR of every unit that compiled cleanly.
// In fail-fast mode units were encoded as soon as they were checked, so
// nothing is left to do here.
func (r *runState) encode(ctx context.Context) error {
	return r.forEach(ctx, true, func(ctx context.Context, u *unitState) error {
		if u.encoded {
			return nil
		}
		return r.encodeUnit(ctx, u)
	})
}

func (r *runState) encodeUnit(ctx context.Context, u *unitState) error {
	if u.checked == nil || u.diags.HasErrors() {
		return nil
	}
	data, err := mir.Encode(u.checked)
	if err != nil {
		u.diags = append(u.diags, encodeDiag(u.unit.ID, err))
		return nil
	}
	a, err := u.out.Write(ctx, artifact.KindMIR, data)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		var ioErr *artifact.IOError
		if !errors.As(err, &ioErr) {
			ioErr = &artifact.IOError{Path: a.Path, Attempts: 1, Err: err}
		}
		u.diags = append(u.diags, writeDiag(u.unit.ID, ioErr))
		return nil
	}
	u.encoded = true
	r.log.Debug("mir written", "unit", u.unit.ID, "path", a.Path, "size", a.Size)
	return nil
}

// forEach applies fn to every unit. In collect-all mode units run on the
// worker pool. In fail-fast mode they run in order, and when gate is set
// the first unit left with an error stops the rest, which are skipped.
// Units that already failed or finished are passed over.
func (r *runState) forEach(ctx context.Context, gate bool, fn func(context.Context, *unitState) error) error {
	if r.opts.Mode == ModeFailFast {
		for _, u := range r.units {
			if err := ctx.Err(); err != nil {
				return err
			}
			if u.skipped || (gate && (u.failed || u.encoded)) {
				continue
			}
			if gate && r.haltedBy != "" {
				u.skip()
				continue
			}
			if err := fn(ctx, u); err != nil {
				return err
			}
			if gate && u.diags.HasErrors() {
				u.failed = true
				if r.haltedBy == "" {
					r.haltedBy = u.unit.ID
					r.log.Info("fail-fast stop", "unit", u.unit.ID)
				}
			}
		}
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, u := range r.units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, u)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// fail ends the run in Failed: everything written so far is removed and
// the result carries no artifacts.
func (r *runState) fail(ctx context.Context, err error) (*Result, error) {
	failedIn := r.m.state
	if r.collector != nil {
		arts := r.collector.Discard()
		if rmErr := r.writer.Remove(arts); rmErr != nil {
			r.log.Warn("cleanup incomplete", "error", rmErr)
		}
		r.log.Info("partial artifacts removed", "count", len(arts))
	}
	if r.tempOut {
		_ = os.RemoveAll(r.outDir)
	}
	r.m.must(StateFailed)

	res := &Result{
		RunID:       r.id,
		State:       r.m.state,
		History:     slices.Clone(r.m.history),
		OutputDir:   r.outDir,
		Units:       []UnitResult{},
		Artifacts:   []artifact.Artifact{},
		Diagnostics: diag.List{runDiag(err)},
	}
	for _, u := range r.units {
		res.Units = append(res.Units, UnitResult{
			Index:        u.unit.Index,
			ID:           u.unit.ID,
			Module:       u.module,
			SourceDigest: u.unit.Digest,
			Outcome:      OutcomeSkipped,
		})
	}

	runErr := &RunError{RunID: r.id, State: failedIn, Err: err}
	r.record(ctx, res, runErr)
	r.log.Error("run failed", "state", failedIn, "error", err)
	return res, runErr
}

func (r *runState) result(arts []artifact.Artifact) *Result {
	res := &Result{
		RunID:       r.id,
		State:       r.m.state,
		History:     slices.Clone(r.m.history),
		OutputDir:   r.outDir,
		Units:       make([]UnitResult, 0, len(r.units)),
		Artifacts:   arts,
		Diagnostics: diag.List{},
	}
	for _, u := range r.units {
		ur := UnitResult{
			Index:        u.unit.Index,
			ID:           u.unit.ID,
			Module:       u.module,
			SourceDigest: u.unit.Digest,
			Outcome:      OutcomeOK,
		}
		diags := slices.Clone(u.diags)
		diags.Sort()
		switch {
		case u.skipped:
			ur.Outcome = OutcomeSkipped
			diags = append(diags, diag.Diagnostic{
				Code:     diag.CodeSkipped,
				Severity: diag.SeverityNote,
				Kind:     diag.KindNote,
				Phase:    diag.PhaseSchedule,
				Unit:     u.unit.ID,
				Message:  fmt.Sprintf("not compiled: fail-fast stopped at %s", r.haltedBy),
			})
		case diags.HasErrors():
			ur.Outcome = OutcomeFailed
		}
		r.log.Debug("unit outcome", "unit", u.unit.ID, "outcome", ur.Outcome, "diagnostics", len(diags))
		res.Units = append(res.Units, ur)
		res.Diagnostics = append(res.Diagnostics, diags...)
	}
	return res
}

func runDiag(err error) diag.Diagnostic {
	d := diag.Diagnostic{
		Code:     diag.CodeGeneric,
		Severity: diag.SeverityError,
		Kind:     diag.KindLoad,
		Phase:    diag.PhaseLoad,
		Message:  err.Error(),
	}
	var loadErr *source.LoadError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.Code = diag.CodeCancelled
		d.Phase = diag.PhaseSchedule
		d.Message = "run cancelled: " + err.Error()
	case errors.As(err, &loadErr):
		d.Code = loadErr.Code
		d.Unit = loadErr.Path
		d.Message = loadErr.Message
	}
	return d
}

func encodeDiag(unit string, err error) diag.Diagnostic {
	code := diag.CodeEncodeFailed
	var encErr *mir.EncodeError
	if errors.As(err, &encErr) && encErr.Err == nil {
		code = diag.CodeUnsupportedConstruct
	}
	return diag.Diagnostic{
		Code:     code,
		Severity: diag.SeverityError,
		Kind:     diag.KindEncode,
		Phase:    diag.PhaseEncode,
		Unit:     unit,
		Message:  err.Error(),
	}
}

func writeDiag(unit string, err *artifact.IOError) diag.Diagnostic {
	return diag.Diagnostic{
		Code:     diag.CodeWriteFailed,
		Severity: diag.SeverityError,
		Kind:     diag.KindIO,
		Phase:    diag.PhaseWrite,
		Unit:     unit,
		Message:  err.Error(),
	}
}
