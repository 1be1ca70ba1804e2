package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/platform"
)

// Version is the morphirc release, set at link time with
// -ldflags "-X github.com/finos/morphir-scala/internal/cli.Version=...".
var Version = "dev"

// VersionInfo is the JSON payload of the version command.
type VersionInfo struct {
	Version         string `json:"version"`
	MIRSchema       int    `json:"mirSchema"`
	BytecodeVersion int    `json:"bytecodeVersion"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version information",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{
				Version:         Version,
				MIRSchema:       mir.SchemaVersion,
				BytecodeVersion: platform.BytecodeVersion,
			}
			formatter := rootOpts.formatter(cmd)
			if formatter.Format == "json" {
				return formatter.Success(info)
			}
			fmt.Fprintf(formatter.Writer, "morphirc %s (mir schema %d, bytecode %d)\n",
				info.Version, info.MIRSchema, info.BytecodeVersion)
			return nil
		},
	}
}
