// Package cli provides the Cobra command structure for mdstream.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/parsehook/mdstream/internal/logging"
)

// BuildInfo holds build-time version information.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCommand creates the root mdstream command with all subcommands.
func NewRootCommand(info BuildInfo) *cobra.Command {
	var debug bool
	var configPath string
	var color string

	rootCmd := &cobra.Command{
		Use:   "mdstream",
		Short: "A streaming Markdown-to-document engine",
		Long: `mdstream turns an append-only stream of Markdown text into a live,
incrementally-patched document tree.

It exposes the same INIT/APPEND/FINALIZE/SET_CREDITS message protocol a
browser-side consumer would drive, over line-delimited JSON on stdin/stdout,
so the engine can be exercised end-to-end from a terminal.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debug {
				logging.SetLevel("debug")
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags.
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&color, "color", "auto",
		"colorize output: auto, always, never")

	// Add subcommands.
	rootCmd.AddCommand(newServeCommand(&configPath, &color))
	rootCmd.AddCommand(newVersionCommand(info))

	// Apply styled help formatting.
	helpFormatter := NewHelpFormatter(color, os.Stdout)
	helpFormatter.ApplyToCommand(rootCmd)

	return rootCmd
}
