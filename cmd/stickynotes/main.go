// Package main is the stickynotes command: an MCP server that keeps sticky notes in a
// flat file and looks up profiles from a remote API, plus a few helpers for managing
// the note file and the API bearer token from a terminal.
// file: cmd/stickynotes/main.go
package main

import (
	"fmt"
	"os"
)

// Build information, set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
