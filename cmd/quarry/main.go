// Package main provides the quarry command-line interface.
package main

import (
	"os"

	"github.com/quarrylabs/quarry/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
