// Package main is the entry point for the mdstream CLI.
package main

import (
	"errors"
	"os"

	"github.com/parsehook/mdstream/internal/cli"
	"github.com/parsehook/mdstream/internal/logging"
)

// Build-time variables set by GoReleaser via ldflags.
//
//nolint:gochecknoglobals // Version variables must be package-level for ldflags injection
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	info := cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	rootCmd := cli.NewRootCommand(info)

	if err := rootCmd.Execute(); err != nil {
		logger := logging.Default()
		logger.Error("command failed", logging.FieldError, err)
		if errors.Is(err, cli.ErrConfig) {
			return cli.ExitConfigError
		}
		return cli.ExitInternalError
	}

	return cli.ExitSuccess
}
