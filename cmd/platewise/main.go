// Package main is the entry point for the platewise CLI.
package main

import (
	"os"

	"github.com/platewise/platewise/cmd/platewise/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
