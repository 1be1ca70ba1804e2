package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Ledger string
	Limit  int
	Run    string // optional - show one run ("latest" for the newest)
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List compiler runs recorded in a ledger",
		Long: `List the compiler runs recorded in a SQLite ledger, newest first, or
show one run with its units, artifacts and diagnostics.

Examples:
  morphirc runs --ledger ./morphir.db
  morphirc runs --ledger ./morphir.db --limit 5 --format json
  morphirc runs --ledger ./morphir.db --run latest`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "path to SQLite ledger (required)")
	_ = cmd.MarkFlagRequired("ledger")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 = all)")
	cmd.Flags().StringVar(&opts.Run, "run", "", `show one run by id, or "latest"`)

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Open would create a missing ledger.
	if _, err := os.Stat(opts.Ledger); err != nil {
		return formatter.fail(diag.CodeNotFound, fmt.Sprintf("ledger not found: %s", opts.Ledger), nil)
	}
	st, err := store.Open(opts.Ledger)
	if err != nil {
		return formatter.fail(diag.CodeGeneric, fmt.Sprintf("open ledger: %v", err), nil)
	}
	defer st.Close()

	if opts.Run != "" {
		return showRun(ctx, formatter, st, opts.Run)
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return formatter.fail(diag.CodeGeneric, err.Error(), nil)
	}
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}
	writeRunList(formatter.Writer, runs)
	return nil
}

func showRun(ctx context.Context, formatter *OutputFormatter, st *store.Store, id string) error {
	if id == "latest" {
		latest, err := st.LatestRunID(ctx)
		if errors.Is(err, store.ErrRunNotFound) {
			return formatter.fail(diag.CodeNotFound, "ledger has no runs", nil)
		}
		if err != nil {
			return formatter.fail(diag.CodeGeneric, err.Error(), nil)
		}
		id = latest
	}

	rec, err := st.ReadRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.fail(diag.CodeNotFound, fmt.Sprintf("run %s not found", id), nil)
	}
	if err != nil {
		return formatter.fail(diag.CodeGeneric, err.Error(), nil)
	}
	if formatter.Format == "json" {
		return formatter.Success(rec)
	}
	writeRun(formatter.Writer, &rec)
	return nil
}

func writeRunList(w io.Writer, runs []store.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "#%d  %s  %-8s %-11s %s  units=%d artifacts=%d errors=%d warnings=%d  %s\n",
			r.Seq, r.ID, r.Status, r.Mode, r.StartedAt.Format(time.RFC3339),
			r.Units, r.Artifacts, r.Errors, r.Warnings, r.Input)
	}
}

func writeRun(w io.Writer, r *store.RunRecord) {
	fmt.Fprintf(w, "Run %s (#%d)\n", r.ID, r.Seq)
	fmt.Fprintf(w, "  input:    %s\n", r.Input)
	fmt.Fprintf(w, "  output:   %s\n", r.OutputDir)
	fmt.Fprintf(w, "  mode:     %s\n", r.Mode)
	fmt.Fprintf(w, "  state:    %s (%s)\n", r.State, r.Status)
	fmt.Fprintf(w, "  duration: %s\n", r.FinishedAt.Sub(r.StartedAt))
	if r.Error != "" {
		fmt.Fprintf(w, "  error:    %s\n", r.Error)
	}

	if len(r.Units) > 0 {
		fmt.Fprintln(w, "\nUnits:")
		for _, u := range r.Units {
			fmt.Fprintf(w, "  %-8s %s (%s)\n", u.Outcome, u.ID, u.Module)
		}
	}
	if len(r.Artifacts) > 0 {
		fmt.Fprintln(w, "\nArtifacts:")
		for _, a := range r.Artifacts {
			fmt.Fprintf(w, "  %s  %d bytes  %s\n", a.Kind, a.Size, a.Path)
		}
	}
	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, "\nDiagnostics:")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d.Error())
		}
	}
}
