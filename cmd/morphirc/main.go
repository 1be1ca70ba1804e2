// Command morphirc compiles Morphir sources to MIR artifacts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/finos/morphir-scala/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "morphirc: %v\n", err)
	}
	return cli.GetExitCode(err)
}
