package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordRun writes a run and all of its children in one transaction and
// sets rec.Seq to the run's position in the ledger.
//
// Recording the same run id twice returns ErrRunExists and leaves the
// ledger unchanged.
func (s *Store) RecordRun(ctx context.Context, rec *RunRecord) error {
	optsJSON, err := marshalOptions(rec.Options)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return fmt.Errorf("record run: next seq: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, mode, input, output_dir, state, status, options, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		seq,
		rec.Mode,
		rec.Input,
		rec.OutputDir,
		rec.State,
		rec.Status,
		optsJSON,
		formatTime(rec.StartedAt),
		formatTime(rec.FinishedAt),
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("record run: rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("record run %s: %w", rec.ID, ErrRunExists)
	}

	if err := writeUnits(ctx, tx, rec); err != nil {
		return err
	}
	if err := writeArtifacts(ctx, tx, rec); err != nil {
		return err
	}
	if err := writeDiagnostics(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	rec.Seq = seq
	return nil
}

func writeUnits(ctx context.Context, tx *sql.Tx, rec *RunRecord) error {
	for i, u := range rec.Units {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO units (run_id, ordinal, unit, module, source_digest, outcome)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, i, u.ID, u.Module, u.SourceDigest, u.Outcome)
		if err != nil {
			return fmt.Errorf("record unit %s: %w", u.ID, err)
		}
	}
	return nil
}

func writeArtifacts(ctx context.Context, tx *sql.Tx, rec *RunRecord) error {
	for i, a := range rec.Artifacts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (run_id, ordinal, unit_index, unit, kind, path, size, digest)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, i, a.UnitIndex, a.Unit, string(a.Kind), a.Path, a.Size, a.Digest)
		if err != nil {
			return fmt.Errorf("record artifact %s: %w", a.Path, err)
		}
	}
	return nil
}

func writeDiagnostics(ctx context.Context, tx *sql.Tx, rec *RunRecord) error {
	for i, d := range rec.Diagnostics {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO diagnostics (run_id, ordinal, unit, code, severity, kind, phase, line, col, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, i, d.Unit, d.Code, int(d.Severity), string(d.Kind), string(d.Phase), d.Pos.Line, d.Pos.Col, d.Message)
		if err != nil {
			return fmt.Errorf("record diagnostic %s: %w", d.Code, err)
		}
	}
	return nil
}
