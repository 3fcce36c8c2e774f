// Package cli implements the ngtpl command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ngx-tools/template/internal/logging"
)

// BuildInfo holds build-time version information.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCommand creates the root ngtpl command with all subcommands.
func NewRootCommand(info BuildInfo) *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "ngtpl",
		Short: "Tokenize Angular-style templates and parse their expressions",
		Long: `ngtpl is the front-end of an Angular-style template compiler.

It tokenizes HTML-superset templates (interpolations, @-blocks, @let
declarations, ICU expansion forms) and parses binding and action
expressions, reporting recoverable errors with precise source spans.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debug {
				logging.SetLevel("debug")
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "path to config file (default: discovered .ngtpl.yaml)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output: auto, always, never")

	rootCmd.AddCommand(newTokensCommand())
	rootCmd.AddCommand(newExprCommand())
	rootCmd.AddCommand(newVersionCommand(info))

	return rootCmd
}
