// Command flowr is the CLI host for the flowrun dataflow execution runtime
// (spec §6 "CLI surface of the host"), generalizing the teacher's
// cmd/server/main.go (env-configured pools, SIGINT/SIGTERM shutdown) into a
// cobra command tree bound to FLOWR_* env vars via viper.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "flowr",
		Short:         "Run dataflow programs described by a flow manifest",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newStatusCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a submission's outcome to spec §6's exit codes: 0 clean,
// 1 submission/load error, 2 cancellation.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := asCancellation(err); ok {
		return 2
	}
	return 1
}
