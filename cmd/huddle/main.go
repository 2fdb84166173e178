// Command huddle schedules group events and answers shared availability
// queries over a local SQLite store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/huddle/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
