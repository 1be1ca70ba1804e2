package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finos/morphir-scala/internal/artifact"
	"github.com/finos/morphir-scala/internal/diag"
)

// ListRuns returns run summaries, most recent first. A limit of zero or less
// returns every run.
//
// Returns an empty slice (not nil) if the ledger has no runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.seq, r.mode, r.input, r.state, r.status, r.started_at, r.finished_at,
			(SELECT COUNT(*) FROM units u WHERE u.run_id = r.id),
			(SELECT COUNT(*) FROM artifacts a WHERE a.run_id = r.id),
			(SELECT COUNT(*) FROM diagnostics d WHERE d.run_id = r.id AND d.severity = ?),
			(SELECT COUNT(*) FROM diagnostics d WHERE d.run_id = r.id AND d.severity = ?)
		FROM runs r
		ORDER BY r.seq DESC, r.id COLLATE BINARY ASC
		LIMIT ?
	`, int(diag.SeverityError), int(diag.SeverityWarning), limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var started, finished string
		if err := rows.Scan(
			&r.ID, &r.Seq, &r.Mode, &r.Input, &r.State, &r.Status, &started, &finished,
			&r.Units, &r.Artifacts, &r.Errors, &r.Warnings,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRunID returns the id of the most recently recorded run.
// Returns ErrRunNotFound if the ledger is empty.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY seq DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return id, nil
}

// ReadRun retrieves a run with its units, artifacts and diagnostics, each in
// recorded order. Returns ErrRunNotFound for an unknown id.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	var rec RunRecord
	var optsJSON, started, finished string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, mode, input, output_dir, state, status, options, started_at, finished_at, error
		FROM runs
		WHERE id = ?
	`, id).Scan(
		&rec.ID, &rec.Seq, &rec.Mode, &rec.Input, &rec.OutputDir, &rec.State, &rec.Status,
		&optsJSON, &started, &finished, &rec.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}

	if rec.Options, err = unmarshalOptions(optsJSON); err != nil {
		return RunRecord{}, err
	}
	if rec.StartedAt, err = parseTime(started); err != nil {
		return RunRecord{}, err
	}
	if rec.FinishedAt, err = parseTime(finished); err != nil {
		return RunRecord{}, err
	}

	if rec.Units, err = s.readUnits(ctx, id); err != nil {
		return RunRecord{}, err
	}
	if rec.Artifacts, err = s.readArtifacts(ctx, id); err != nil {
		return RunRecord{}, err
	}
	if rec.Diagnostics, err = s.readDiagnostics(ctx, id); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

func (s *Store) readUnits(ctx context.Context, runID string) ([]UnitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, unit, module, source_digest, outcome
		FROM units
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	units := []UnitRecord{}
	for rows.Next() {
		var u UnitRecord
		if err := rows.Scan(&u.Index, &u.ID, &u.Module, &u.SourceDigest, &u.Outcome); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

func (s *Store) readArtifacts(ctx context.Context, runID string) ([]artifact.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_index, unit, kind, path, size, digest
		FROM artifacts
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	arts := []artifact.Artifact{}
	for rows.Next() {
		var a artifact.Artifact
		var kind string
		if err := rows.Scan(&a.UnitIndex, &a.Unit, &kind, &a.Path, &a.Size, &a.Digest); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Kind = artifact.Kind(kind)
		arts = append(arts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return arts, nil
}

func (s *Store) readDiagnostics(ctx context.Context, runID string) (diag.List, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit, code, severity, kind, phase, line, col, message
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := diag.List{}
	for rows.Next() {
		var d diag.Diagnostic
		var severity int
		var kind, phase string
		if err := rows.Scan(&d.Unit, &d.Code, &severity, &kind, &phase, &d.Pos.Line, &d.Pos.Col, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Severity = diag.Severity(severity)
		d.Kind = diag.Kind(kind)
		d.Phase = diag.Phase(phase)
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}
