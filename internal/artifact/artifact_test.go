package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finos/morphir-scala/internal/source"
)

// flakyFS fails the first n writes, then delegates to the OS.
type flakyFS struct {
	OSFileSystem
	mu       sync.Mutex
	failures int
	writes   int
}

func (f *flakyFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	f.mu.Lock()
	f.writes++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.OSFileSystem.WriteFile(path, data, perm)
}

// =============================================================================
// Collector
// =============================================================================

func TestCollectorOrdersByUnit(t *testing.T) {
	c := NewCollector(3)
	require.NoError(t, c.Add(Artifact{UnitIndex: 2, Path: "c.mir"}))
	require.NoError(t, c.Add(Artifact{UnitIndex: 0, Path: "a.mbc"}))
	require.NoError(t, c.Add(Artifact{UnitIndex: 1, Path: "b.mir"}))
	require.NoError(t, c.Add(Artifact{UnitIndex: 0, Path: "a.mir"}))
	assert.Equal(t, 4, c.Len())

	got, err := c.Finalize()
	require.NoError(t, err)
	paths := make([]string, len(got))
	for i, a := range got {
		paths[i] = a.Path
	}
	assert.Equal(t, []string{"a.mbc", "a.mir", "b.mir", "c.mir"}, paths)
}

func TestCollectorFinalizeOnce(t *testing.T) {
	c := NewCollector(1)
	got, err := c.Finalize()
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	_, err = c.Finalize()
	assert.ErrorIs(t, err, ErrFinalized)
	assert.ErrorIs(t, c.Add(Artifact{}), ErrFinalized)
}

func TestCollectorRejectsUnknownUnit(t *testing.T) {
	c := NewCollector(2)
	assert.Error(t, c.Add(Artifact{UnitIndex: 2}))
	assert.Error(t, c.Add(Artifact{UnitIndex: -1}))
}

func TestCollectorDiscard(t *testing.T) {
	c := NewCollector(2)
	require.NoError(t, c.Add(Artifact{UnitIndex: 1, Path: "b"}))
	require.NoError(t, c.Add(Artifact{UnitIndex: 0, Path: "a"}))

	gone := c.Discard()
	require.Len(t, gone, 2)
	assert.Equal(t, "a", gone[0].Path)
	assert.Equal(t, 0, c.Len())
	assert.ErrorIs(t, c.Add(Artifact{}), ErrFinalized)
	_, err := c.Finalize()
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestCollectorConcurrentAdds(t *testing.T) {
	const units, perUnit = 8, 50
	c := NewCollector(units)

	var wg sync.WaitGroup
	for u := range units {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perUnit {
				assert.NoError(t, c.Add(Artifact{UnitIndex: u, Size: int64(i)}))
			}
		}()
	}
	wg.Wait()

	got, err := c.Finalize()
	require.NoError(t, err)
	require.Len(t, got, units*perUnit)
	for i, a := range got {
		assert.Equal(t, i/perUnit, a.UnitIndex)
		assert.Equal(t, int64(i%perUnit), a.Size, "production order within a unit is kept")
	}
}

// =============================================================================
// Writer
// =============================================================================

func TestUnitWriterPaths(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(nil, NewCollector(2), 0, nil)
	uw := w.Unit(source.Unit{ID: "finance/rates.scala", Index: 1}, out)

	assert.Equal(t, "finance/rates.scala", uw.UnitID())
	assert.Equal(t, filepath.Join(out, "finance", "rates.mir"), uw.Path(KindMIR))
	assert.Equal(t, filepath.Join(out, "finance", "rates.mbc"), uw.Path(KindBytecode))
	assert.Equal(t, filepath.Join(out, "finance", "rates.dbg.json"), uw.Path(KindDebug))
}

func TestWriterWritesAndCollects(t *testing.T) {
	out := t.TempDir()
	c := NewCollector(1)
	w := NewWriter(nil, c, 0, nil)
	uw := w.Unit(source.Unit{ID: "nested/dir/unit.src"}, out)

	a, err := uw.Write(context.Background(), KindMIR, []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.Size)
	assert.Equal(t, Digest([]byte("payload")), a.Digest)
	assert.Equal(t, "nested/dir/unit.src", a.Unit)

	data, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	entries, err := os.ReadDir(filepath.Dir(a.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")

	got, err := c.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []Artifact{a}, got)
}

func TestWriterRetriesOnce(t *testing.T) {
	fs := &flakyFS{failures: 1}
	c := NewCollector(1)
	w := NewWriter(fs, c, 0, nil)

	_, err := w.Unit(source.Unit{ID: "a.src"}, t.TempDir()).Write(context.Background(), KindMIR, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 2, fs.writes)
	assert.Equal(t, 1, c.Len())
}

func TestWriterGivesUpAfterRetry(t *testing.T) {
	fs := &flakyFS{failures: 2}
	c := NewCollector(1)
	w := NewWriter(fs, c, 0, nil)

	_, err := w.Unit(source.Unit{ID: "a.src"}, t.TempDir()).Write(context.Background(), KindMIR, []byte("x"))
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, 2, ioErr.Attempts)
	assert.EqualError(t, ioErr.Err, "disk full")
	assert.Equal(t, 0, c.Len())
}

func TestWriterStopsOnCancel(t *testing.T) {
	fs := &flakyFS{failures: 1}
	w := NewWriter(fs, NewCollector(1), DefaultBackoff, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Unit(source.Unit{ID: "a.src"}, t.TempDir()).Write(ctx, KindMIR, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fs.writes)
}

func TestWriterRemove(t *testing.T) {
	out := t.TempDir()
	c := NewCollector(1)
	w := NewWriter(nil, c, 0, nil)
	uw := w.Unit(source.Unit{ID: "a.src"}, out)

	a, err := uw.Write(context.Background(), KindMIR, []byte("x"))
	require.NoError(t, err)
	b, err := uw.Write(context.Background(), KindDebug, []byte("{}"))
	require.NoError(t, err)

	require.NoError(t, w.Remove(c.Discard()))
	assert.NoFileExists(t, a.Path)
	assert.NoFileExists(t, b.Path)
	assert.NoError(t, w.Remove([]Artifact{a}), "removing twice is fine")
}
