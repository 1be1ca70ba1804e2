package mirc

import (
	"fmt"

	"github.com/finos/morphir-scala/internal/artifact"
	"github.com/finos/morphir-scala/internal/diag"
)

// Status summarizes a finished run.
type Status string

const (
	StatusOK      Status = "ok"      // no error diagnostics
	StatusPartial Status = "partial" // errors, but some artifacts were produced
	StatusFailed  Status = "failed"  // errors and no artifacts
)

// Unit outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// UnitResult is the outcome of one compilation unit.
type UnitResult struct {
	Index        int    `json:"index"`
	ID           string `json:"id"`
	Module       string `json:"module,omitempty"`
	SourceDigest string `json:"sourceDigest"`
	Outcome      string `json:"outcome"`
}

// Result is everything a run produced. A run that failed as a whole still
// returns a Result carrying its state history and diagnostics.
type Result struct {
	RunID     string       `json:"run"`
	State     State        `json:"state"`
	History   []State      `json:"history"`
	OutputDir string       `json:"outputDir,omitempty"`
	Units     []UnitResult `json:"units"`
	// Artifacts are ordered by unit index, then by production order within
	// a unit.
	Artifacts   []artifact.Artifact `json:"artifacts"`
	Diagnostics diag.List           `json:"diagnostics"`
}

// Paths returns the artifact locations in order.
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		paths[i] = a.Path
	}
	return paths
}

// Status classifies the run by its diagnostics and artifacts.
func (r *Result) Status() Status {
	if r.State == StateFailed {
		return StatusFailed
	}
	if !r.Diagnostics.HasErrors() {
		return StatusOK
	}
	if len(r.Artifacts) > 0 {
		return StatusPartial
	}
	return StatusFailed
}

// RunError is a run-fatal failure: the input could not be loaded, or the
// run was cancelled or timed out.
type RunError struct {
	RunID string
	// State is the state the run was in when it failed.
	State State
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed while %s: %v", e.RunID, e.State, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
