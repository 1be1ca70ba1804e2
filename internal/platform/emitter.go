// Package platform turns checked MIR modules into platform artifacts. The
// stack emitter produces a bytecode file and a debug file per unit; the
// MIR file itself is written by the compiler facade.
package platform

import (
	"context"
	"fmt"

	"github.com/finos/morphir-scala/internal/artifact"
	"github.com/finos/morphir-scala/internal/canon"
	"github.com/finos/morphir-scala/internal/mir"
)

// Emitter produces platform artifacts for one checked module. It writes
// through out so every file lands in the run's collector, and returns the
// artifacts it wrote, including those written before a failure.
type Emitter interface {
	Name() string
	Emit(ctx context.Context, m *mir.Module, out *artifact.UnitWriter) ([]artifact.Artifact, error)
}

// Nop emits nothing.
type Nop struct{}

func (Nop) Name() string { return "none" }

func (Nop) Emit(context.Context, *mir.Module, *artifact.UnitWriter) ([]artifact.Artifact, error) {
	return nil, nil
}

// StackEmitter writes <stem>.mbc and <stem>.dbg.json.
type StackEmitter struct{}

func (StackEmitter) Name() string { return "stack" }

func (StackEmitter) Emit(ctx context.Context, m *mir.Module, out *artifact.UnitWriter) ([]artifact.Artifact, error) {
	prog, err := Lower(m)
	if err != nil {
		return nil, err
	}
	code, err := EncodeProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("encode bytecode: %w", err)
	}
	dbg, err := canon.Marshal(DebugInfo(m, prog))
	if err != nil {
		return nil, fmt.Errorf("encode debug info: %w", err)
	}

	var written []artifact.Artifact
	a, err := out.Write(ctx, artifact.KindBytecode, code)
	if err != nil {
		return written, err
	}
	written = append(written, a)
	a, err = out.Write(ctx, artifact.KindDebug, dbg)
	if err != nil {
		return written, err
	}
	return append(written, a), nil
}

// ByName returns the emitter registered under name.
func ByName(name string) (Emitter, error) {
	switch name {
	case "", "stack":
		return StackEmitter{}, nil
	case "none":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unknown platform emitter %q", name)
}
