// Package main provides the subfarm command-line tool.
package main

import (
	"os"

	"github.com/openmech/subfarm/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
