// Package main provides the entry point for the dilagent CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mrz1836/dilagent/internal/cli"
)

// Build information set via ldflags.
//
//nolint:gochecknoglobals // Populated by the linker
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	ctx := context.Background()
	info := cli.BuildInfo{Version: version, Commit: commit, Date: date}

	err := cli.Execute(ctx, info)
	cli.CloseLogFile()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCodeForError(err))
	}
}
