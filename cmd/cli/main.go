// Package main is the entry point for the releaseplane CLI.
// The CLI is the release manager's terminal tool for interacting with the
// releaseplane API.
package main

import (
	"os"

	"releaseplane/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
