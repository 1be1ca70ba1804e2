package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/finos/morphir-scala/internal/source"
)

// DefaultBackoff is the pause before the single retry of a failed write.
const DefaultBackoff = 50 * time.Millisecond

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// IOError reports an artifact that could not be written, after the retry.
type IOError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s failed after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Writer writes artifacts through a FileSystem and registers every
// successful write with a Collector. It is safe for concurrent use.
type Writer struct {
	fs        FileSystem
	collector *Collector
	backoff   time.Duration
	logger    *slog.Logger
}

// NewWriter creates a Writer. A nil fs means OSFileSystem, a negative backoff
// means DefaultBackoff and a nil logger discards.
func NewWriter(fs FileSystem, c *Collector, backoff time.Duration, logger *slog.Logger) *Writer {
	if fs == nil {
		fs = OSFileSystem{}
	}
	if backoff < 0 {
		backoff = DefaultBackoff
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{fs: fs, collector: c, backoff: backoff, logger: logger}
}

// Write stores data for the artifact a, whose Path, Kind and unit fields
// must be set. Size and Digest are filled in. A failed write is retried
// once after the backoff; a second failure returns *IOError.
func (w *Writer) Write(ctx context.Context, a Artifact, data []byte) (Artifact, error) {
	a.Size = int64(len(data))
	a.Digest = Digest(data)

	attempts := 0
	err := w.attempt(ctx, a.Path, data, &attempts)
	if err != nil && ctx.Err() == nil {
		w.logger.Warn("artifact write failed, retrying",
			"unit", a.Unit, "path", a.Path, "backoff", w.backoff, "error", err)
		if serr := sleep(ctx, w.backoff); serr != nil {
			return a, &IOError{Path: a.Path, Attempts: attempts, Err: errors.Join(err, serr)}
		}
		err = w.attempt(ctx, a.Path, data, &attempts)
	}
	if err != nil {
		return a, &IOError{Path: a.Path, Attempts: attempts, Err: err}
	}

	if err := w.collector.Add(a); err != nil {
		_ = w.fs.Remove(a.Path)
		return a, err
	}
	w.logger.Debug("artifact written", "unit", a.Unit, "kind", a.Kind, "path", a.Path, "size", a.Size)
	return a, nil
}

func (w *Writer) attempt(ctx context.Context, path string, data []byte, attempts *int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	*attempts++
	if err := w.fs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	return w.fs.WriteFile(path, data, filePerm)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Remove deletes the files of the given artifacts, continuing past errors.
func (w *Writer) Remove(arts []Artifact) error {
	var errs []error
	for _, a := range arts {
		if err := w.fs.Remove(a.Path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unit binds the writer to one compilation unit and output directory.
func (w *Writer) Unit(u source.Unit, outDir string) *UnitWriter {
	return &UnitWriter{w: w, unit: u.ID, index: u.Index, stem: u.Stem(), dir: outDir}
}

// UnitWriter writes the artifacts of one unit to <outDir>/<stem><ext>.
type UnitWriter struct {
	w     *Writer
	unit  string
	index int
	stem  string
	dir   string
}

// UnitID returns the identity of the bound unit.
func (uw *UnitWriter) UnitID() string { return uw.unit }

// Path returns where an artifact of the given kind is written.
func (uw *UnitWriter) Path(kind Kind) string {
	return filepath.Join(uw.dir, filepath.FromSlash(uw.stem)+kind.Ext())
}

// Write stores one artifact of the unit.
func (uw *UnitWriter) Write(ctx context.Context, kind Kind, data []byte) (Artifact, error) {
	return uw.w.Write(ctx, Artifact{
		Kind:      kind,
		Unit:      uw.unit,
		UnitIndex: uw.index,
		Path:      uw.Path(kind),
	}, data)
}
