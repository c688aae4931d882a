// Gantry runs matrix workflows locally: it expands a workflow's matrix
// into cells and drives each cell's step pipeline of checkout, cache,
// shell commands, and draft release staging.
package main

import (
	"fmt"
	"os"

	"github.com/gantry/gantry/pkg/cli"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
