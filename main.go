// ./main.go
package main

import (
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/cmd"
)

// main is the entry point for the testbed CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
