package main

import (
	"errors"
	"os"

	"github.com/ngx-tools/template/internal/cli"
	"github.com/ngx-tools/template/internal/logging"
)

// Set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := cli.NewRootCommand(cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, cli.ErrParseIssuesFound) {
			logging.Default().Error(err.Error())
		}
		return 1
	}
	return 0
}
