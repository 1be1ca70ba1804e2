package store

import (
	"errors"
	"time"

	"github.com/finos/morphir-scala/internal/artifact"
	"github.com/finos/morphir-scala/internal/canon"
	"github.com/finos/morphir-scala/internal/diag"
)

var (
	// ErrRunExists is returned when a run id is recorded twice.
	ErrRunExists = errors.New("run already recorded")
	// ErrRunNotFound is returned by ReadRun for an unknown id.
	ErrRunNotFound = errors.New("run not found")
)

// Unit outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// RunRecord is one compiler run as kept in the ledger. Seq is assigned by
// RecordRun.
type RunRecord struct {
	ID         string       `json:"id"`
	Seq        int64        `json:"seq"`
	Mode       string       `json:"mode"`
	Input      string       `json:"input"`
	OutputDir  string       `json:"outputDir"`
	State      string       `json:"state"`
	Status     string       `json:"status"`
	Options    canon.Object `json:"-"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Error      string       `json:"error,omitempty"`

	Units       []UnitRecord        `json:"units,omitempty"`
	Artifacts   []artifact.Artifact `json:"artifacts,omitempty"`
	Diagnostics diag.List           `json:"diagnostics,omitempty"`
}

// UnitRecord is the outcome of one compilation unit within a run.
type UnitRecord struct {
	Index        int    `json:"index"`
	ID           string `json:"id"`
	Module       string `json:"module"`
	SourceDigest string `json:"sourceDigest"`
	Outcome      string `json:"outcome"`
}

// RunSummary is a run header with child counts, as listed by ListRuns.
type RunSummary struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	Mode       string    `json:"mode"`
	Input      string    `json:"input"`
	State      string    `json:"state"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Units      int       `json:"units"`
	Artifacts  int       `json:"artifacts"`
	Errors     int       `json:"errors"`
	Warnings   int       `json:"warnings"`
}
