// Package main provides the entry point for the pinpoint CLI.
package main

import (
	"os"

	"github.com/pinpoint-search/pinpoint/cmd/pinpoint/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
