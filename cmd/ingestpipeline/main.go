package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hasomerhacairhu/ingest-pipeline/cmd/ingestpipeline/commands"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/extractstage"
)

// version information, injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// The process pool re-execs this binary as a disposable OCR worker;
	// dispatch to it before any cobra flag parsing so that worker's
	// footprint stays minimal.
	if extractstage.IsOCRWorkerInvocation(os.Args[1:]) {
		os.Exit(extractstage.RunOCRWorkerMain(os.Args[2:]))
	}

	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var cfgErr *commands.ConfigError
		if errors.As(err, &cfgErr) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
