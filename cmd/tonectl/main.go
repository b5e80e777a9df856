package main

import (
	"os"

	"github.com/tonehq/tonectl/cmd/tonectl/commands"
)

// Version is the current version of tonectl
// This must match the git tag when creating releases
const Version = "v0.1.0"

func main() {
	commands.SetVersion(Version)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
