package mirc

import (
	"context"
	"slices"

	"github.com/finos/morphir-scala/internal/canon"
	"github.com/finos/morphir-scala/internal/store"
)

// record hands the finished run to the Recorder, if any. A ledger failure
// is logged and never changes the outcome of the run.
func (r *runState) record(ctx context.Context, res *Result, runErr error) {
	if r.opts.Recorder == nil {
		return
	}
	rec := r.runRecord(res, runErr)
	if err := r.opts.Recorder.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		r.log.Warn("run not recorded", "error", err)
		return
	}
	r.log.Debug("run recorded", "seq", rec.Seq)
}

func (r *runState) runRecord(res *Result, runErr error) *store.RunRecord {
	rec := &store.RunRecord{
		ID:          res.RunID,
		Mode:        r.opts.Mode.String(),
		Input:       r.in.String(),
		OutputDir:   res.OutputDir,
		State:       string(res.State),
		Status:      string(res.Status()),
		Options:     r.optionsObject(),
		StartedAt:   r.started,
		FinishedAt:  r.opts.Now(),
		Units:       make([]store.UnitRecord, len(res.Units)),
		Artifacts:   slices.Clone(res.Artifacts),
		Diagnostics: slices.Clone(res.Diagnostics),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	for i, u := range res.Units {
		rec.Units[i] = store.UnitRecord{
			Index:        u.Index,
			ID:           u.ID,
			Module:       u.Module,
			SourceDigest: u.SourceDigest,
			Outcome:      u.Outcome,
		}
	}
	return rec
}

// optionsObject is the run configuration kept with the record.
func (r *runState) optionsObject() canon.Object {
	o := r.opts
	exts := o.Extensions
	if exts == nil {
		exts = []string{}
	}
	return canon.ObjectOf(
		canon.P("project", canon.String(o.Project)),
		canon.P("mode", canon.String(o.Mode.String())),
		canon.P("workers", canon.Int(o.Workers)),
		canon.P("extensions", canon.Strings(exts)),
		canon.P("timeout", canon.String(o.Timeout.String())),
		canon.P("emitter", canon.String(o.Emitter.Name())),
	)
}
