// ./main.go
package main

import (
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/cmd"
)

// main is the entry point for the merlin-apply application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
