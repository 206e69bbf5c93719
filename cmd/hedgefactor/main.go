// Package main is the entry point for the hedgefactor CLI.
package main

import (
	"os"

	"github.com/jmylchreest/hedgefactor/cmd/hedgefactor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
