package mirc

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/finos/morphir-scala/internal/artifact"
	"github.com/finos/morphir-scala/internal/platform"
	"github.com/finos/morphir-scala/internal/runid"
	"github.com/finos/morphir-scala/internal/store"
)

// Mode selects how unit failures affect the rest of a run.
type Mode int

const (
	// ModeCollectAll compiles every unit in parallel and reports all
	// diagnostics.
	ModeCollectAll Mode = iota
	// ModeFailFast processes units one at a time and stops at the first
	// unit with an error.
	ModeFailFast
)

func (m Mode) String() string {
	if m == ModeFailFast {
		return "fail-fast"
	}
	return "collect-all"
}

// Recorder keeps a record of finished runs. *store.Store implements it.
type Recorder interface {
	RecordRun(ctx context.Context, rec *store.RunRecord) error
}

// Options configures a Compiler. The zero value is usable.
type Options struct {
	// Project names the project in logs and run records.
	Project string
	// OutputDir is where artifacts are written. Empty means
	// <base>/target/morphir for directories and a fresh temporary
	// directory for inline text.
	OutputDir string
	// Extensions lists accepted source file extensions; empty means
	// source.DefaultExtensions.
	Extensions []string
	Mode       Mode
	// Workers bounds unit parallelism; zero means runtime.GOMAXPROCS(0).
	Workers int
	// Timeout bounds a whole run; zero means no limit beyond the caller's
	// context.
	Timeout time.Duration
	// WriteBackoff is the pause before retrying a failed artifact write.
	// Zero means artifact.DefaultBackoff; negative retries immediately.
	WriteBackoff time.Duration
	// Emitter produces platform artifacts; nil means platform.StackEmitter.
	Emitter platform.Emitter
	// FS is where artifacts are written; nil means the OS file system.
	FS       artifact.FileSystem
	Logger   *slog.Logger
	Recorder Recorder
	RunIDs   runid.Generator
	// Now reads the wall clock for run records.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Emitter == nil {
		o.Emitter = platform.StackEmitter{}
	}
	if o.FS == nil {
		o.FS = artifact.OSFileSystem{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.RunIDs == nil {
		o.RunIDs = runid.UUIDv7{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) backoff() time.Duration {
	switch {
	case o.WriteBackoff == 0:
		return artifact.DefaultBackoff
	case o.WriteBackoff < 0:
		return 0
	}
	return o.WriteBackoff
}
