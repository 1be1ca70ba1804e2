package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/finos/morphir-scala/internal/artifact"
	"github.com/finos/morphir-scala/internal/config"
	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/platform"
	"github.com/finos/morphir-scala/internal/store"
	"github.com/finos/morphir-scala/mirc"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Text       string
	Output     string
	FailFast   bool
	Workers    int
	Timeout    time.Duration
	ConfigPath string
	Ledger     string
	NoPlatform bool
}

// CompileReport is the JSON payload of a finished compilation.
type CompileReport struct {
	Run         string              `json:"run"`
	State       mirc.State          `json:"state"`
	Status      mirc.Status         `json:"status"`
	OutputDir   string              `json:"outputDir,omitempty"`
	Units       []mirc.UnitResult   `json:"units"`
	Artifacts   []artifact.Artifact `json:"artifacts"`
	Diagnostics diag.List           `json:"diagnostics"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [dir]",
		Short: "Compile sources to MIR artifacts",
		Long: `Compile every source file under a directory, or one inline source text,
to MIR artifacts.

Settings come from morphir.yaml (found in the directory or a parent, or given
with --config); flags override the file. Unit failures are reported as
diagnostics and exit with status 1; load failures, timeouts and interrupts
exit with status 2 and leave no artifacts behind.

Examples:
  morphirc compile ./src
  morphirc compile ./src -o ./out --fail-fast --workers 4
  morphirc compile --text 'def add1(x: Int): Int = x + 1' --format json
  morphirc compile ./src --ledger ./morphir.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Text, "text", "", "compile this inline source text instead of a directory")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory for artifacts")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop at the first unit with an error")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parallel unit workers (0 = number of CPUs)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "abort the run after this long (0 = no limit)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to morphir.yaml")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "record the run in this SQLite ledger")
	cmd.Flags().BoolVar(&opts.NoPlatform, "no-platform", false, "skip bytecode and debug artifacts")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	flags := cmd.Flags()

	inline := flags.Changed("text")
	if inline && len(args) > 0 {
		return formatter.fail(diag.CodeGeneric, "give either a directory or --text, not both", nil)
	}
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, err := loadConfig(opts.ConfigPath, dir)
	if err != nil {
		var cerr *config.Error
		if errors.As(err, &cerr) {
			return formatter.fail(diag.CodeGeneric, "invalid configuration", cerr.Issues)
		}
		return formatter.fail(diag.CodeGeneric, err.Error(), nil)
	}
	if cfg.Path != "" {
		formatter.VerboseLog("Using configuration %s", cfg.Path)
	}

	mopts := cfg.Options()
	if flags.Changed("output") {
		mopts.OutputDir = opts.Output
	}
	if flags.Changed("fail-fast") {
		mopts.Mode = mirc.ModeCollectAll
		if opts.FailFast {
			mopts.Mode = mirc.ModeFailFast
		}
	}
	if flags.Changed("workers") {
		mopts.Workers = opts.Workers
	}
	if flags.Changed("timeout") {
		mopts.Timeout = opts.Timeout
	}
	if opts.NoPlatform {
		mopts.Emitter = platform.Nop{}
	}
	mopts.Logger = opts.newLogger(cmd.ErrOrStderr(), cfg.Level())

	ledger := cfg.Ledger
	if flags.Changed("ledger") {
		ledger = opts.Ledger
	}
	if ledger != "" {
		st, err := store.Open(ledger)
		if err != nil {
			return formatter.fail(diag.CodeGeneric, fmt.Sprintf("open ledger: %v", err), nil)
		}
		defer st.Close()
		mopts.Recorder = st
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := mirc.New(mopts)
	var res *mirc.Result
	if inline {
		res, err = c.Compile(ctx, opts.Text)
	} else {
		res, err = c.CompileDir(ctx, dir)
	}
	if err != nil {
		code, message := diag.CodeGeneric, err.Error()
		if res != nil && len(res.Diagnostics) > 0 {
			code, message = res.Diagnostics[0].Code, res.Diagnostics[0].Message
		}
		return formatter.fail(code, message, nil)
	}

	return outputCompileResult(formatter, res)
}

// loadConfig reads the explicit config file, or the nearest morphir.yaml
// above dir, or falls back to defaults.
func loadConfig(explicit, dir string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	path, err := config.Find(dir)
	if errors.Is(err, config.ErrNotFound) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func outputCompileResult(formatter *OutputFormatter, res *mirc.Result) error {
	status := res.Status()
	if formatter.Format == "json" {
		report := CompileReport{
			Run:         res.RunID,
			State:       res.State,
			Status:      status,
			OutputDir:   res.OutputDir,
			Units:       res.Units,
			Artifacts:   res.Artifacts,
			Diagnostics: res.Diagnostics,
		}
		if err := formatter.Respond(string(status), report); err != nil {
			return err
		}
	} else {
		writeCompileText(formatter.Writer, res, status)
	}

	if status != mirc.StatusOK {
		errs := len(res.Diagnostics.Errors())
		return NewExitError(ExitFailure, fmt.Sprintf("compilation %s with %d error(s)", status, errs))
	}
	return nil
}

func writeCompileText(w io.Writer, res *mirc.Result, status mirc.Status) {
	failed := 0
	for _, u := range res.Units {
		if u.Outcome != mirc.OutcomeOK {
			failed++
		}
	}

	mark := "✓"
	if status != mirc.StatusOK {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s Compiled %d unit(s): %d artifact(s), %d failed\n",
		mark, len(res.Units), len(res.Artifacts), failed)

	if len(res.Diagnostics) > 0 {
		fmt.Fprintln(w)
		for _, d := range res.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d.Error())
		}
	}

	if len(res.Artifacts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Artifacts:")
		for _, a := range res.Artifacts {
			fmt.Fprintf(w, "  %s\n", a.Path)
		}
	}
}
