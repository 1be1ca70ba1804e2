// Package artifact writes compiler outputs to disk and collects them in a
// stable order.
//
// Every artifact belongs to exactly one compilation unit. Its path is derived
// from the unit identity, so any file in an output directory can be traced
// back to the source it came from.
package artifact

import (
	"github.com/finos/morphir-scala/internal/canon"
)

// Kind classifies an artifact.
type Kind string

const (
	KindBytecode Kind = "bytecode"
	KindDebug    Kind = "debug"
	KindMIR      Kind = "mir"
)

// Ext returns the file extension used for the kind, including the dot.
func (k Kind) Ext() string {
	switch k {
	case KindBytecode:
		return ".mbc"
	case KindDebug:
		return ".dbg.json"
	case KindMIR:
		return ".mir"
	default:
		return "." + string(k)
	}
}

// Artifact is one file written for a unit.
type Artifact struct {
	Kind      Kind   `json:"kind"`
	Unit      string `json:"unit"`
	UnitIndex int    `json:"unitIndex"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Digest    string `json:"digest"`
}

// Digest is the content digest recorded for artifact bytes.
func Digest(data []byte) string {
	return canon.Digest(canon.DomainArtifact, data)
}
