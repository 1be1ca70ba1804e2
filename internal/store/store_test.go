package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/finos/morphir-scala/internal/artifact"
	"github.com/finos/morphir-scala/internal/canon"
	"github.com/finos/morphir-scala/internal/diag"
)

// createTestStore opens a fresh ledger in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var epoch = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func createTestRun(id string) *RunRecord {
	return &RunRecord{
		ID:         id,
		Mode:       "collect-all",
		Input:      "/src/project",
		OutputDir:  "/src/project/target/morphir",
		State:      "Done",
		Status:     "partial",
		Options:    canon.ObjectOf(canon.P("workers", canon.Int(4))),
		StartedAt:  epoch,
		FinishedAt: epoch.Add(1500 * time.Millisecond),
		Units: []UnitRecord{
			{Index: 0, ID: "a.scala", Module: "a", SourceDigest: "sha256:aa", Outcome: OutcomeOK},
			{Index: 1, ID: "b.scala", Module: "b", SourceDigest: "sha256:bb", Outcome: OutcomeFailed},
		},
		Artifacts: []artifact.Artifact{
			{Kind: artifact.KindBytecode, Unit: "a.scala", UnitIndex: 0, Path: "out/a.mbc", Size: 10, Digest: "sha256:01"},
			{Kind: artifact.KindMIR, Unit: "a.scala", UnitIndex: 0, Path: "out/a.mir", Size: 20, Digest: "sha256:02"},
		},
		Diagnostics: diag.List{
			{Code: "E401", Severity: diag.SeverityError, Kind: diag.KindType, Phase: diag.PhaseTypeCheck,
				Unit: "b.scala", Pos: diag.Pos{Line: 3, Col: 7}, Message: "type mismatch"},
			{Code: "E450", Severity: diag.SeverityWarning, Kind: diag.KindType, Phase: diag.PhaseTypeCheck,
				Unit: "a.scala", Pos: diag.Pos{Line: 9, Col: 1}, Message: "match is not exhaustive"},
		},
	}
}

// =============================================================================
// Open
// =============================================================================

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"runs", "units", "artifacts", "diagnostics"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "1",
	} {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_RejectsNewerLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 7"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err == nil {
		s.Close()
		t.Fatal("Open() succeeded on a ledger with a newer schema")
	}
	if !strings.Contains(err.Error(), "ledger schema version 7 is newer than supported version 1") {
		t.Errorf("Open() error = %v", err)
	}
}

// =============================================================================
// RecordRun / ReadRun
// =============================================================================

func TestRecordAndReadRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestRun("run-1")
	if err := s.RecordRun(ctx, rec); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}
	if rec.Seq != 1 {
		t.Errorf("Seq = %d, want 1", rec.Seq)
	}

	got, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if !reflect.DeepEqual(got, *rec) {
		t.Errorf("ReadRun() mismatch:\n got  %+v\n want %+v", got, *rec)
	}
}

func TestRecordRun_EmptyChildren(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := &RunRecord{ID: "empty", Mode: "collect-all", Input: "snippet", State: "Failed", Status: "failed",
		StartedAt: epoch, FinishedAt: epoch}
	if err := s.RecordRun(ctx, rec); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}

	got, err := s.ReadRun(ctx, "empty")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if got.Units == nil || got.Artifacts == nil || got.Diagnostics == nil || got.Options == nil {
		t.Error("children should be empty slices, not nil")
	}
	if len(got.Units)+len(got.Artifacts)+len(got.Diagnostics) != 0 {
		t.Errorf("expected no children, got %+v", got)
	}
}

func TestRecordRun_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.RecordRun(ctx, createTestRun("dup")); err != nil {
		t.Fatalf("first RecordRun() failed: %v", err)
	}
	again := createTestRun("dup")
	again.Status = "ok"
	err := s.RecordRun(ctx, again)
	if !errors.Is(err, ErrRunExists) {
		t.Fatalf("second RecordRun() error = %v, want ErrRunExists", err)
	}

	got, err := s.ReadRun(ctx, "dup")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if got.Status != "partial" {
		t.Errorf("Status = %q, the first record must win", got.Status)
	}
	if len(got.Units) != 2 {
		t.Errorf("len(Units) = %d, want 2", len(got.Units))
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("ReadRun() error = %v, want ErrRunNotFound", err)
	}
}

// =============================================================================
// ListRuns
// =============================================================================

func TestListRuns_MostRecentFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		if err := s.RecordRun(ctx, createTestRun(id)); err != nil {
			t.Fatalf("RecordRun(%s) failed: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if want := []string{"third", "second", "first"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ListRuns() ids = %v, want %v", ids, want)
	}

	r := runs[0]
	if r.Seq != 3 || r.Units != 2 || r.Artifacts != 2 || r.Errors != 1 || r.Warnings != 1 {
		t.Errorf("summary counts wrong: %+v", r)
	}
	if !r.StartedAt.Equal(epoch) {
		t.Errorf("StartedAt = %v, want %v", r.StartedAt, epoch)
	}

	limited, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(2) failed: %v", err)
	}
	if len(limited) != 2 || limited[1].ID != "second" {
		t.Errorf("ListRuns(2) = %+v", limited)
	}

	latest, err := s.LatestRunID(ctx)
	if err != nil {
		t.Fatalf("LatestRunID() failed: %v", err)
	}
	if latest != "third" {
		t.Errorf("LatestRunID() = %q, want third", latest)
	}
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns() = %#v, want empty non-nil slice", runs)
	}

	if _, err := s.LatestRunID(context.Background()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRunID() error = %v, want ErrRunNotFound", err)
	}
}
