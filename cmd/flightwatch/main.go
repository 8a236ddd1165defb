// Package main is the entry point for the flightwatch command.
package main

import (
	"fmt"
	"os"

	"github.com/j-veylop/flightwatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
