package main

import (
	"os"

	"lawgpt/internal/cmd"
)

// Version is set during build.
var Version = "dev"

func main() {
	cmd.Version = Version
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
