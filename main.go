package main

import (
	"os"

	"github.com/australis-energy/leadgate/cmd"
	"github.com/australis-energy/leadgate/internal/buildinfo"
)

// Injected with -ldflags "-X main.version=... -X main.buildDate=... -X main.commit=...".
var (
	version   string
	buildDate string
	commit    string
)

func main() {
	rootCmd := cmd.RootCommand(buildinfo.New(version, buildDate, commit))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
