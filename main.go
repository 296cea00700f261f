package main

import (
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/cmd"
)

// main is the entry point for the ui-crawler application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
