// Package main provides the entry point for the contextos CLI.
package main

import (
	"os"

	"github.com/contextos/contextos/cmd/contextos/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
