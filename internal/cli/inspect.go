package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/platform"
)

// InspectReport is the JSON payload of the inspect command.
type InspectReport struct {
	File         string `json:"file"`
	Module       string `json:"module"`
	Unit         string `json:"unit"`
	SourceDigest string `json:"sourceDigest"`
	Types        int    `json:"types"`
	Values       int    `json:"values"`
	Dump         string `json:"dump"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file.mir>",
		Short: "Decode a MIR artifact and print it",
		Long: `Decode a pickled MIR file, verifying its magic, checksum and schema
version, and print the module in readable form.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runInspect(opts *RootOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	data, err := os.ReadFile(file)
	if err != nil {
		return formatter.fail(diag.CodeReadFailed, fmt.Sprintf("cannot read %s: %v", file, err), nil)
	}
	m, err := mir.Decode(data)
	if err != nil {
		return formatter.fail(diag.CodeGeneric, err.Error(), nil)
	}

	dump := mir.Print(m)
	if formatter.Format == "json" {
		return formatter.Success(InspectReport{
			File:         file,
			Module:       m.Name,
			Unit:         m.Unit,
			SourceDigest: m.SourceDigest,
			Types:        len(m.Types),
			Values:       len(m.Values),
			Dump:         dump,
		})
	}
	fmt.Fprint(formatter.Writer, dump)
	return nil
}

// DisasmReport is the JSON payload of the disasm command.
type DisasmReport struct {
	File    string `json:"file"`
	Listing string `json:"listing"`
}

// NewDisasmCommand creates the disasm command.
func NewDisasmCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "disasm <file.mbc>",
		Short:         "Disassemble a bytecode artifact",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisasm(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runDisasm(opts *RootOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	data, err := os.ReadFile(file)
	if err != nil {
		return formatter.fail(diag.CodeReadFailed, fmt.Sprintf("cannot read %s: %v", file, err), nil)
	}
	listing, err := platform.Disassemble(data)
	if err != nil {
		return formatter.fail(diag.CodeGeneric, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(DisasmReport{File: file, Listing: listing})
	}
	fmt.Fprint(formatter.Writer, listing)
	return nil
}
