// Command lastclick ingests purchases with last-click attribution into a
// deduplicated order store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/lastclick/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
