// Package main provides the vizmigrate command.
package main

import (
	"os"

	"github.com/leapstack-labs/vizmigrate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
